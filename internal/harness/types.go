package harness

import (
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Trace event types.
const (
	EventCommand = "command"
	EventAlert   = "alert"
)

// TraceEvent is a command or an alert in the order the simulator produced
// it.
type TraceEvent struct {
	Tick int64     `json:"tick"`
	At   time.Time `json:"timestamp"`
	Type string    `json:"type"`

	Command *engine.Command `json:"command,omitempty"`
	Outcome engine.Outcome  `json:"outcome,omitempty"`

	AlertID  int64         `json:"alert_id,omitempty"`
	Severity *plant.Status `json:"severity,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// FinalState is the discrete part of the last published snapshot.
type FinalState struct {
	Tick     int64              `json:"tick"`
	Mode     engine.ControlMode `json:"control_mode"`
	Status   plant.Status       `json:"overall_status"`
	ECCS     plant.ECCSStatus   `json:"eccs_status"`
	GridSync plant.GridSync     `json:"grid_sync_status"`
	PumpA    bool               `json:"coolant_pump_a"`
	PumpB    bool               `json:"coolant_pump_b"`
}

// Trace is the golden-comparable record of a run. It holds no continuous
// readings so that goldens survive model tuning that keeps behaviour.
type Trace struct {
	Scenario string       `json:"scenario"`
	Ticks    int64        `json:"ticks"`
	Events   []TraceEvent `json:"events"`
	Final    FinalState   `json:"final"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace records every command and alert.
	Trace Trace `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the last snapshot of the run.
	Final *engine.Snapshot `json:"-"`

	// Statuses holds the published overall status after each tick;
	// Statuses[0] is the initial state.
	Statuses []plant.Status `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(name string, ticks int64) *Result {
	return &Result{
		Pass:   true,
		Trace:  Trace{Scenario: name, Ticks: ticks, Events: []TraceEvent{}},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddReport appends the command and alerts of a report to the trace.
func (r *Result) AddReport(rep engine.Report) {
	if rep.Command != nil {
		cmd := rep.Command.Command
		r.Trace.Events = append(r.Trace.Events, TraceEvent{
			Tick:    rep.Tick,
			At:      rep.At,
			Type:    EventCommand,
			Command: &cmd,
			Outcome: rep.Command.Outcome,
		})
	}
	for _, a := range rep.Alerts {
		severity := a.Severity
		r.Trace.Events = append(r.Trace.Events, TraceEvent{
			Tick:     rep.Tick,
			At:       a.At,
			Type:     EventAlert,
			AlertID:  a.ID,
			Severity: &severity,
			Message:  a.Message,
		})
	}
}

// alerts returns the alert events in order.
func (r *Result) alerts() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace.Events {
		if e.Type == EventAlert {
			out = append(out, e)
		}
	}
	return out
}
