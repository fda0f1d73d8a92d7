package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
)

// Run is one journaled simulation run.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Config    engine.Config `json:"config"`
}

// BeginRun records the start of a run. Uses ON CONFLICT(id) DO NOTHING, so
// calling it twice for the same run is harmless.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	cfgJSON, err := marshalJSON(run.Config)
	if err != nil {
		return fmt.Errorf("begin run: marshal config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, config)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, formatTime(run.StartedAt), cfgJSON)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// WriteSample inserts one tick sample. Duplicate (run, tick) pairs are
// silently ignored.
func (s *Store) WriteSample(ctx context.Context, runID string, sample engine.HistorySample) error {
	return writeSample(ctx, s.db, runID, sample)
}

func writeSample(ctx context.Context, x execer, runID string, sample engine.HistorySample) error {
	stateJSON, err := marshalJSON(sample.State)
	if err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	_, err = x.ExecContext(ctx, `
		INSERT INTO samples (run_id, tick, at, status, state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, tick) DO NOTHING
	`, runID, sample.Tick, formatTime(sample.At), sample.State.Status.String(), stateJSON)
	if err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// WriteAlert inserts one alert observed at tick.
func (s *Store) WriteAlert(ctx context.Context, runID string, tick int64, a engine.Alert) error {
	return writeAlert(ctx, s.db, runID, tick, a)
}

func writeAlert(ctx context.Context, x execer, runID string, tick int64, a engine.Alert) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO alerts (run_id, id, tick, at, severity, message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, runID, a.ID, tick, formatTime(a.At), a.Severity.String(), normalizeText(a.Message))
	if err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

// WriteCommand inserts one applied command.
func (s *Store) WriteCommand(ctx context.Context, runID string, tick int64, at time.Time, rec engine.CommandRecord) error {
	return writeCommand(ctx, s.db, runID, tick, at, rec)
}

func writeCommand(ctx context.Context, x execer, runID string, tick int64, at time.Time, rec engine.CommandRecord) error {
	cmdJSON, err := marshalJSON(rec.Command)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	_, err = x.ExecContext(ctx, `
		INSERT INTO commands (run_id, seq, tick, at, kind, command, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, runID, rec.Seq, tick, formatTime(at), rec.Command.Kind.String(), cmdJSON, rec.Outcome.String())
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// WriteReport journals everything in r atomically.
func (s *Store) WriteReport(ctx context.Context, r engine.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if r.Command != nil {
		if err := writeCommand(ctx, tx, r.RunID, r.Tick, r.At, *r.Command); err != nil {
			return err
		}
	}
	if r.Sample != nil {
		if err := writeSample(ctx, tx, r.RunID, *r.Sample); err != nil {
			return err
		}
	}
	for _, a := range r.Alerts {
		if err := writeAlert(ctx, tx, r.RunID, r.Tick, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}
