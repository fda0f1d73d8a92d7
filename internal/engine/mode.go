package engine

import (
	"fmt"
	"strings"
	"time"
)

// ControlMode selects who drives the rod target.
type ControlMode int

const (
	// ModeAuto tracks grid demand.
	ModeAuto ControlMode = iota
	// ModeManual holds the operator's target until the reversion deadline.
	ModeManual
)

func (m ControlMode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeManual:
		return "MANUAL"
	default:
		return fmt.Sprintf("ControlMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ControlMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ControlMode) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "AUTO":
		*m = ModeAuto
	case "MANUAL":
		*m = ModeManual
	default:
		return fmt.Errorf("unknown control mode %q", text)
	}
	return nil
}

// modeMachine is the Auto/Manual state machine with its single reversion
// deadline. The deadline is zero in Auto.
type modeMachine struct {
	mode     ControlMode
	deadline time.Time
	timeout  time.Duration
}

// override enters Manual and (re)arms the deadline. Returns true when the mode
// changed.
func (m *modeMachine) override(now time.Time) bool {
	changed := m.mode != ModeManual
	m.mode = ModeManual
	m.deadline = now.Add(m.timeout)
	return changed
}

// expire reverts to Auto once now has reached the deadline. Returns true on
// the Manual -> Auto edge.
func (m *modeMachine) expire(now time.Time) bool {
	if m.mode != ModeManual || now.Before(m.deadline) {
		return false
	}
	m.mode = ModeAuto
	m.deadline = time.Time{}
	return true
}
