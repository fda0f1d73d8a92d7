package plant

import (
	"fmt"
	"strings"
)

// Status is the overall plant condition. It doubles as alert severity.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusCritical
)

var statusNames = [...]string{"NORMAL", "WARNING", "CRITICAL"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Matching is case-insensitive.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), statusNames[:])
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = Status(v)
	return nil
}

// GridSync is the generator's connection state to the external grid.
type GridSync int

const (
	GridDisconnected GridSync = iota
	GridSynchronizing
	GridConnected
)

var gridSyncNames = [...]string{"Disconnected", "Synchronizing", "Connected"}

func (g GridSync) String() string {
	if g < 0 || int(g) >= len(gridSyncNames) {
		return fmt.Sprintf("GridSync(%d)", int(g))
	}
	return gridSyncNames[g]
}

// MarshalText implements encoding.TextMarshaler.
func (g GridSync) MarshalText() ([]byte, error) {
	if g < 0 || int(g) >= len(gridSyncNames) {
		return nil, fmt.Errorf("invalid grid sync %d", int(g))
	}
	return []byte(gridSyncNames[g]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GridSync) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), gridSyncNames[:])
	if err != nil {
		return fmt.Errorf("grid sync: %w", err)
	}
	*g = GridSync(v)
	return nil
}

// ECCSStatus is the state of the emergency core cooling system.
//
// Standby -> Active happens only by operator command; Active -> Fault only by
// reservoir depletion inside Step. Fault is terminal.
type ECCSStatus int

const (
	ECCSStandby ECCSStatus = iota
	ECCSActive
	ECCSFault
)

var eccsNames = [...]string{"Standby", "Active", "Fault"}

func (e ECCSStatus) String() string {
	if e < 0 || int(e) >= len(eccsNames) {
		return fmt.Sprintf("ECCSStatus(%d)", int(e))
	}
	return eccsNames[e]
}

// MarshalText implements encoding.TextMarshaler.
func (e ECCSStatus) MarshalText() ([]byte, error) {
	if e < 0 || int(e) >= len(eccsNames) {
		return nil, fmt.Errorf("invalid eccs status %d", int(e))
	}
	return []byte(eccsNames[e]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *ECCSStatus) UnmarshalText(text []byte) error {
	v, err := parseEnum(string(text), eccsNames[:])
	if err != nil {
		return fmt.Errorf("eccs status: %w", err)
	}
	*e = ECCSStatus(v)
	return nil
}

// Pump identifies one of the two primary coolant pumps. The zero value
// names no pump.
type Pump int

const (
	PumpA Pump = iota + 1
	PumpB
)

func (p Pump) String() string {
	switch p {
	case PumpA:
		return "A"
	case PumpB:
		return "B"
	default:
		return fmt.Sprintf("Pump(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pump) MarshalText() ([]byte, error) {
	if p != PumpA && p != PumpB {
		return nil, fmt.Errorf("invalid pump %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pump) UnmarshalText(text []byte) error {
	v, err := ParsePump(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePump accepts "A", "B" and their lower-case forms.
func ParsePump(s string) (Pump, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return PumpA, nil
	case "B":
		return PumpB, nil
	default:
		return 0, fmt.Errorf("unknown pump %q", s)
	}
}

// State is one complete reading of the plant. It is a value type: every tick
// produces a new State and nothing mutates a published one.
type State struct {
	Temperature         float64    `json:"reactor_temperature" yaml:"reactor_temperature"`   // °C
	Pressure            float64    `json:"coolant_pressure" yaml:"coolant_pressure"`         // bar
	TurbineSpeed        float64    `json:"turbine_rpm" yaml:"turbine_rpm"`                   // RPM
	PowerOutput         float64    `json:"power_output" yaml:"power_output"`                 // MW
	Radiation           float64    `json:"radiation_level" yaml:"radiation_level"`           // mSv/h
	CoolantFlow         float64    `json:"coolant_flow" yaml:"coolant_flow"`                 // m³/s
	RodPosition         float64    `json:"control_rod_position" yaml:"control_rod_position"` // % inserted
	GridDemand          float64    `json:"grid_demand" yaml:"grid_demand"`                   // MW
	PumpA               bool       `json:"coolant_pump_a" yaml:"coolant_pump_a"`
	PumpB               bool       `json:"coolant_pump_b" yaml:"coolant_pump_b"`
	GridSync            GridSync   `json:"grid_sync_status" yaml:"grid_sync_status"`
	ContainmentPressure float64    `json:"containment_pressure" yaml:"containment_pressure"` // bar
	ContainmentTemp     float64    `json:"containment_temp" yaml:"containment_temp"`         // °C
	ECCS                ECCSStatus `json:"eccs_status" yaml:"eccs_status"`
	ECCSReservoir       float64    `json:"eccs_water_level" yaml:"eccs_water_level"` // %
	Status              Status     `json:"overall_status" yaml:"overall_status"`
}

// DefaultState is the cold-start reading: rods half inserted, both pumps
// running, generator connected and ECCS armed with a full reservoir.
func DefaultState() State {
	s := State{
		Temperature:         450,
		Pressure:            155,
		TurbineSpeed:        1800,
		PowerOutput:         300,
		Radiation:           0.005,
		CoolantFlow:         80,
		RodPosition:         50,
		GridDemand:          300,
		PumpA:               true,
		PumpB:               true,
		GridSync:            GridConnected,
		ContainmentPressure: 1.05,
		ContainmentTemp:     25,
		ECCS:                ECCSStandby,
		ECCSReservoir:       100,
	}
	s.Status = DeriveStatus(s.Temperature, s.Pressure, s.CoolantFlow)
	return s
}

// PumpOn reports whether pump p is running.
func (s State) PumpOn(p Pump) bool {
	if p == PumpB {
		return s.PumpB
	}
	return s.PumpA
}

// WithPump returns a copy of s with pump p set to on.
func (s State) WithPump(p Pump, on bool) State {
	switch p {
	case PumpA:
		s.PumpA = on
	case PumpB:
		s.PumpB = on
	}
	return s
}

// Normalize clamps the bounded fields into their domains and recomputes the
// derived overall status. Used when a State is assembled from outside input.
func (s State) Normalize() State {
	s.RodPosition = ClampPercent(s.RodPosition)
	s.ECCSReservoir = ClampPercent(s.ECCSReservoir)
	s.GridDemand = clamp(s.GridDemand, DemandMin, DemandMax)
	if s.Temperature < TemperatureFloor {
		s.Temperature = TemperatureFloor
	}
	if s.CoolantFlow < 0 {
		s.CoolantFlow = 0
	}
	s.Status = DeriveStatus(s.Temperature, s.Pressure, s.CoolantFlow)
	return s
}

// ClampPercent clamps v into [0, 100].
func ClampPercent(v float64) float64 {
	return clamp(v, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseEnum(text string, names []string) (int, error) {
	for i, n := range names {
		if strings.EqualFold(text, n) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value %q (want one of %s)", text, strings.Join(names, ", "))
}
