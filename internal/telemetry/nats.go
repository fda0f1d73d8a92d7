package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
)

// Publisher is the subset of *nats.Conn the sink uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// AlertMessage is the payload published for each alert.
type AlertMessage struct {
	RunID string `json:"run_id"`
	Tick  int64  `json:"tick"`
	engine.Alert
}

// SampleMessage is the payload published for each tick.
type SampleMessage struct {
	RunID string `json:"run_id"`
	engine.HistorySample
}

// CommandMessage is the payload published for each applied command.
type CommandMessage struct {
	RunID string    `json:"run_id"`
	Tick  int64     `json:"tick"`
	At    time.Time `json:"timestamp"`
	engine.CommandRecord
}

// NATSSink publishes reports under a subject prefix:
//
//	<prefix>.samples
//	<prefix>.commands
//	<prefix>.alerts.<severity>
type NATSSink struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
}

// NewNATSSink wraps an existing publisher.
func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

// NATSOptions configures DialNATS.
type NATSOptions struct {
	URL           string
	SubjectPrefix string
	Name          string
	Logger        *slog.Logger
}

// DialNATS connects to the broker and returns a sink that owns the
// connection.
func DialNATS(opts NATSOptions) (*NATSSink, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "scada"
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", opts.URL, err)
	}

	sink := NewNATSSink(conn, opts.SubjectPrefix)
	sink.conn = conn
	return sink, nil
}

// Subject returns the full subject for a suffix.
func (s *NATSSink) Subject(parts ...string) string {
	return strings.Join(append([]string{s.prefix}, parts...), ".")
}

// Observe implements engine.Observer.
func (s *NATSSink) Observe(_ context.Context, r engine.Report) error {
	if r.Command != nil {
		msg := CommandMessage{RunID: r.RunID, Tick: r.Tick, At: r.At, CommandRecord: *r.Command}
		if err := s.publish(s.Subject("commands"), msg); err != nil {
			return err
		}
	}
	if r.Sample != nil {
		msg := SampleMessage{RunID: r.RunID, HistorySample: *r.Sample}
		if err := s.publish(s.Subject("samples"), msg); err != nil {
			return err
		}
	}
	for _, a := range r.Alerts {
		msg := AlertMessage{RunID: r.RunID, Tick: r.Tick, Alert: a}
		subject := s.Subject("alerts", strings.ToLower(a.Severity.String()))
		if err := s.publish(subject, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *NATSSink) publish(subject string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if err := s.pub.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes a connection opened by DialNATS.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
