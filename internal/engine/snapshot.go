package engine

import (
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Snapshot is an immutable point-in-time view of the simulation. The slices
// are private copies; holders may keep them indefinitely.
type Snapshot struct {
	RunID string    `json:"run_id"`
	Tick  int64     `json:"tick"`
	At    time.Time `json:"timestamp"`

	Mode            ControlMode `json:"control_mode"`
	ReversionAt     *time.Time  `json:"reversion_at,omitempty"`
	ECCSConfirmOpen bool        `json:"eccs_confirm_pending"`
	RodTarget       float64     `json:"rod_target"`

	State   plant.State     `json:"state"`
	History []HistorySample `json:"history,omitempty"`
	Alerts  []Alert         `json:"alerts"`
}

// CommandRecord pairs an applied command with its outcome.
type CommandRecord struct {
	Seq     int64   `json:"seq"`
	Command Command `json:"command"`
	Outcome Outcome `json:"outcome"`
}

// Report describes one simulator step: either a tick (Sample set) or a
// command (Command set). Alerts lists the entries appended during the step,
// in order.
type Report struct {
	RunID   string         `json:"run_id"`
	Tick    int64          `json:"tick"`
	At      time.Time      `json:"timestamp"`
	Command *CommandRecord `json:"command,omitempty"`
	Sample  *HistorySample `json:"sample,omitempty"`
	Alerts  []Alert        `json:"alerts,omitempty"`
}
