package engine

import (
	"fmt"
	"strings"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// CommandKind enumerates the operator commands.
type CommandKind int

const (
	CommandSetRods CommandKind = iota + 1
	CommandScram
	CommandTogglePump
	CommandGridSync
	CommandActivateECCS
	CommandAcknowledgeAlerts
)

var commandNames = map[CommandKind]string{
	CommandSetRods:           "set_rods",
	CommandScram:             "scram",
	CommandTogglePump:        "toggle_pump",
	CommandGridSync:          "grid_sync",
	CommandActivateECCS:      "activate_eccs",
	CommandAcknowledgeAlerts: "acknowledge_alerts",
}

func (k CommandKind) String() string {
	if n, ok := commandNames[k]; ok {
		return n
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k CommandKind) MarshalText() ([]byte, error) {
	n, ok := commandNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid command kind %d", int(k))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *CommandKind) UnmarshalText(text []byte) error {
	v, err := ParseCommandKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseCommandKind maps a command name such as "set_rods" to its kind.
func ParseCommandKind(s string) (CommandKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, n := range commandNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", s)
}

// Command is one operator request. Only the fields relevant to Kind are read.
type Command struct {
	Kind CommandKind `json:"kind" yaml:"kind"`
	// Position is the requested rod insertion for CommandSetRods, in percent.
	Position float64 `json:"position,omitempty" yaml:"position,omitempty"`
	// Pump selects the pump for CommandTogglePump.
	Pump plant.Pump `json:"pump,omitempty" yaml:"pump,omitempty"`
}

// SetRods requests a control rod target. Out-of-range values are clamped.
func SetRods(position float64) Command {
	return Command{Kind: CommandSetRods, Position: position}
}

// Scram drives the rods to full insertion.
func Scram() Command {
	return Command{Kind: CommandScram}
}

// TogglePump flips pump p on or off.
func TogglePump(p plant.Pump) Command {
	return Command{Kind: CommandTogglePump, Pump: p}
}

// RequestGridSync starts generator synchronisation. It is a no-op unless the
// generator is disconnected.
func RequestGridSync() Command {
	return Command{Kind: CommandGridSync}
}

// ActivateECCS presses the ECCS activation control. The first press only arms
// the confirmation window.
func ActivateECCS() Command {
	return Command{Kind: CommandActivateECCS}
}

// AcknowledgeAlerts clears the alert log.
func AcknowledgeAlerts() Command {
	return Command{Kind: CommandAcknowledgeAlerts}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandSetRods:
		return fmt.Sprintf("%s(%g)", c.Kind, c.Position)
	case CommandTogglePump:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Pump)
	default:
		return c.Kind.String()
	}
}

// Outcome is the result of applying a command. Commands never fail: invalid
// input is clamped or ignored.
type Outcome int

const (
	// Applied means the command changed the simulation.
	Applied Outcome = iota + 1
	// NoOp means the command was accepted but had nothing to do.
	NoOp
	// AwaitingConfirmation means the ECCS gate was armed and a second press
	// within the confirmation window is required.
	AwaitingConfirmation
)

var outcomeNames = map[Outcome]string{
	Applied:              "applied",
	NoOp:                 "no_op",
	AwaitingConfirmation: "awaiting_confirmation",
}

func (o Outcome) String() string {
	if n, ok := outcomeNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	n, ok := outcomeNames[o]
	if !ok {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	s := strings.ToLower(string(text))
	for k, n := range outcomeNames {
		if n == s {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", s)
}
