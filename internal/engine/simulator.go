package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Simulator is the deterministic simulation context. It owns the plant state,
// the control-mode machine, the ECCS gate, the alert log and the history ring.
//
// Simulator is not safe for concurrent use. Engine serializes access to it;
// tests and the scenario harness drive it directly.
type Simulator struct {
	cfg    Config
	clock  Clock
	rng    plant.Rand
	logger *slog.Logger
	runID  string

	// state is what the next Step reads. published is its rounded form and
	// the only form observers see.
	state     plant.State
	published plant.State
	rodTarget float64

	mode    modeMachine
	gate    confirmGate
	alerts  *alertLog
	history *historyRing

	alertSeq   *Sequence
	commandSeq *Sequence
	tick       int64
	lastAt     time.Time
}

// NewSimulator creates a simulator at cfg.Initial in Auto mode.
func NewSimulator(cfg Config, opts ...Option) *Simulator {
	st := newSettings(cfg, opts)
	return newSimulator(cfg.withDefaults(), st)
}

func newSettings(cfg Config, opts []Option) *settings {
	st := &settings{}
	for _, opt := range opts {
		opt(st)
	}
	if st.clock == nil {
		st.clock = SystemClock{}
	}
	if st.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		st.rng = rand.New(rand.NewSource(seed))
	}
	if st.logger == nil {
		st.logger = slog.Default()
	}
	if st.runIDs == nil {
		st.runIDs = UUIDv7Generator{}
	}
	return st
}

func newSimulator(cfg Config, st *settings) *Simulator {
	s := &Simulator{
		cfg:        cfg,
		clock:      st.clock,
		rng:        st.rng,
		logger:     st.logger,
		runID:      st.runIDs.Generate(),
		mode:       modeMachine{mode: ModeAuto, timeout: cfg.ManualTimeout},
		gate:       confirmGate{window: cfg.ConfirmWindow},
		alerts:     newAlertLog(cfg.AlertCapacity),
		history:    newHistoryRing(cfg.HistoryCapacity),
		alertSeq:   NewSequence(),
		commandSeq: NewSequence(),
		lastAt:     st.clock.Now(),
	}
	initial := cfg.Initial.Normalize()
	s.commit(initial)
	s.rodTarget = s.state.RodPosition
	return s
}

// RunID identifies this simulation run.
func (s *Simulator) RunID() string {
	return s.runID
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// State returns the current published state.
func (s *Simulator) State() plant.State {
	return s.published
}

// Mode returns the control mode as of the last Tick or Apply.
func (s *Simulator) Mode() ControlMode {
	return s.mode.mode
}

// Tick advances the plant by one step.
func (s *Simulator) Tick() Report {
	now := s.clock.Now()
	s.lastAt = now
	alerts := s.expireTimers(now)

	prev := s.published
	res := plant.Step(s.state, plant.Input{
		Auto:      s.mode.mode == ModeAuto,
		RodTarget: s.rodTarget,
		Smoothing: s.cfg.Smoothing,
	}, s.rng)
	s.rodTarget = res.RodTarget
	s.tick++
	s.commit(res.State)
	alerts = append(alerts, s.emitTransitions(now, prev)...)

	sample := HistorySample{Tick: s.tick, At: now, State: s.published}
	s.history.push(sample)

	return Report{
		RunID:  s.runID,
		Tick:   s.tick,
		At:     now,
		Sample: &sample,
		Alerts: alerts,
	}
}

// Apply executes an operator command between ticks.
func (s *Simulator) Apply(cmd Command) Report {
	now := s.clock.Now()
	s.lastAt = now
	alerts := s.expireTimers(now)

	prev := s.published
	outcome, direct := s.apply(now, cmd)
	alerts = append(alerts, direct...)
	alerts = append(alerts, s.emitTransitions(now, prev)...)

	s.logger.Info("command applied",
		"command", cmd.String(),
		"outcome", outcome.String(),
		"mode", s.mode.mode.String(),
	)

	return Report{
		RunID: s.runID,
		Tick:  s.tick,
		At:    now,
		Command: &CommandRecord{
			Seq:     s.commandSeq.Next(),
			Command: cmd,
			Outcome: outcome,
		},
		Alerts: alerts,
	}
}

func (s *Simulator) apply(now time.Time, cmd Command) (Outcome, []Alert) {
	switch cmd.Kind {
	case CommandSetRods, CommandScram:
		requested := 100.0
		if cmd.Kind == CommandSetRods {
			requested = cmd.Position
		}
		s.override(now)
		s.rodTarget = plant.ClampPercent(requested)
		// The alert echoes the operator's request, not the clamped target.
		return Applied, []Alert{s.emit(now, fmt.Sprintf(msgRodOverrideFormat, math.Round(requested)), plant.StatusWarning)}

	case CommandTogglePump:
		if cmd.Pump != plant.PumpA && cmd.Pump != plant.PumpB {
			return NoOp, nil
		}
		s.override(now)
		on := !s.state.PumpOn(cmd.Pump)
		s.commit(s.state.WithPump(cmd.Pump, on))
		word := "OFF"
		if on {
			word = "ON"
		}
		return Applied, []Alert{s.emit(now, fmt.Sprintf(msgPumpOverrideFormat, cmd.Pump, word), plant.StatusWarning)}

	case CommandGridSync:
		s.override(now)
		if s.state.GridSync != plant.GridDisconnected {
			return NoOp, nil
		}
		next := s.state
		next.GridSync = plant.GridSynchronizing
		s.commit(next)
		return Applied, nil

	case CommandActivateECCS:
		if !s.gate.press(now) {
			return AwaitingConfirmation, nil
		}
		s.override(now)
		if s.state.ECCS != plant.ECCSStandby {
			return NoOp, nil
		}
		next := s.state
		next.ECCS = plant.ECCSActive
		s.commit(next)
		s.rodTarget = 100
		return Applied, nil

	case CommandAcknowledgeAlerts:
		// Acknowledging is bookkeeping, not a plant action: the mode is kept.
		s.alerts.clear()
		return Applied, []Alert{s.emit(now, MsgAcknowledged, plant.StatusNormal)}

	default:
		s.logger.Warn("ignoring unknown command", "kind", int(cmd.Kind))
		return NoOp, nil
	}
}

// Snapshot returns an immutable copy of the current simulation view.
func (s *Simulator) Snapshot() *Snapshot {
	snap := &Snapshot{
		RunID:           s.runID,
		Tick:            s.tick,
		At:              s.lastAt,
		Mode:            s.mode.mode,
		ECCSConfirmOpen: s.gate.pending(),
		RodTarget:       s.rodTarget,
		State:           s.published,
		History:         s.history.samples(),
		Alerts:          s.alerts.list(),
	}
	if s.mode.mode == ModeManual {
		deadline := s.mode.deadline
		snap.ReversionAt = &deadline
	}
	return snap
}

// commit installs next as the current state.
func (s *Simulator) commit(next plant.State) {
	s.published = next.Rounded()
	if s.cfg.CompoundRounding {
		s.state = s.published
		return
	}
	s.state = next
}

func (s *Simulator) override(now time.Time) {
	if s.mode.override(now) {
		s.logger.Info("control mode changed", "mode", ModeManual.String())
	}
}

// expireTimers fires due deadlines before any other work in a step.
func (s *Simulator) expireTimers(now time.Time) []Alert {
	s.gate.expire(now)
	if !s.mode.expire(now) {
		return nil
	}
	s.logger.Info("control mode changed", "mode", ModeAuto.String())
	return []Alert{s.emit(now, MsgReturnedToAuto, plant.StatusNormal)}
}

func (s *Simulator) emitTransitions(now time.Time, prev plant.State) []Alert {
	drafts := transitionAlerts(prev, s.published)
	if len(drafts) == 0 {
		return nil
	}
	out := make([]Alert, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, s.emit(now, d.message, d.severity))
	}
	return out
}

func (s *Simulator) emit(now time.Time, message string, severity plant.Status) Alert {
	a := Alert{
		ID:       s.alertSeq.Next(),
		At:       now,
		Message:  message,
		Severity: severity,
	}
	s.alerts.append(a)
	s.logger.Log(context.Background(), alertLevel(severity), "alert",
		"id", a.ID,
		"severity", severity.String(),
		"message", message,
	)
	return a
}

func alertLevel(s plant.Status) slog.Level {
	switch s {
	case plant.StatusCritical:
		return slog.LevelError
	case plant.StatusWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
