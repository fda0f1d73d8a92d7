package engine

import (
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Alert messages.
const (
	MsgWarning            = "System entered WARNING state."
	MsgCritical           = "SYSTEM CRITICAL. IMMEDIATE ACTION REQUIRED."
	MsgECCSActivated      = "ECCS ACTIVATED: Manual override engaged. Emergency core cooling initiated."
	MsgECCSDepleted       = "ECCS DEACTIVATED: Reservoir depleted, cooling has ceased. System entered FAULT state."
	MsgECCSFault          = "ECCS FAULT: An unexpected system failure has occurred."
	MsgGridSynchronizing  = "Grid synchronization sequence initiated."
	MsgGridConnected      = "Generator synchronized and connected to the main grid."
	MsgReturnedToAuto     = "Control system returned to AUTO mode."
	MsgAcknowledged       = "Alarm log acknowledged and cleared by operator."
	msgRodOverrideFormat  = "MANUAL OVERRIDE: Control rods set to %.0f%%."
	msgPumpOverrideFormat = "MANUAL OVERRIDE: Coolant Pump %s turned %s."
)

// Alert is an immutable alert log entry. Severity uses the overall status
// scale.
type Alert struct {
	ID       int64        `json:"id"`
	At       time.Time    `json:"timestamp"`
	Message  string       `json:"message"`
	Severity plant.Status `json:"severity"`
}

type alertDraft struct {
	message  string
	severity plant.Status
}

// transitionAlerts compares two published states and returns one draft per
// qualifying edge: overall status, then ECCS, then grid sync.
func transitionAlerts(prev, next plant.State) []alertDraft {
	var out []alertDraft

	if next.Status != prev.Status {
		switch next.Status {
		case plant.StatusWarning:
			out = append(out, alertDraft{MsgWarning, plant.StatusWarning})
		case plant.StatusCritical:
			out = append(out, alertDraft{MsgCritical, plant.StatusCritical})
		}
	}

	if next.ECCS != prev.ECCS {
		switch next.ECCS {
		case plant.ECCSActive:
			out = append(out, alertDraft{MsgECCSActivated, plant.StatusCritical})
		case plant.ECCSFault:
			msg := MsgECCSFault
			if next.ECCSReservoir <= 0 {
				msg = MsgECCSDepleted
			}
			out = append(out, alertDraft{msg, plant.StatusCritical})
		}
	}

	if next.GridSync != prev.GridSync {
		switch next.GridSync {
		case plant.GridSynchronizing:
			out = append(out, alertDraft{MsgGridSynchronizing, plant.StatusNormal})
		case plant.GridConnected:
			out = append(out, alertDraft{MsgGridConnected, plant.StatusNormal})
		}
	}

	return out
}

// alertLog is a bounded FIFO. When full, appending drops the oldest entry.
type alertLog struct {
	entries []Alert
	limit   int
}

func newAlertLog(limit int) *alertLog {
	return &alertLog{entries: make([]Alert, 0, limit), limit: limit}
}

func (l *alertLog) append(a Alert) {
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = a
		return
	}
	l.entries = append(l.entries, a)
}

func (l *alertLog) clear() {
	l.entries = l.entries[:0]
}

func (l *alertLog) len() int {
	return len(l.entries)
}

// list returns a copy, oldest first.
func (l *alertLog) list() []Alert {
	out := make([]Alert, len(l.entries))
	copy(out, l.entries)
	return out
}
