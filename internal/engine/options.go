package engine

import (
	"log/slog"
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Config holds the simulation tunables. Zero fields take their defaults.
type Config struct {
	TickPeriod      time.Duration
	Smoothing       float64
	ManualTimeout   time.Duration
	ConfirmWindow   time.Duration
	AlertCapacity   int
	HistoryCapacity int
	// CompoundRounding feeds the rounded published state back into the next
	// tick instead of the full-precision state.
	CompoundRounding bool
	// Seed seeds the default random source; 0 seeds from the clock.
	Seed int64
	// Initial is the cold-start state; the zero State selects
	// plant.DefaultState.
	Initial plant.State
}

// Defaults.
const (
	DefaultTickPeriod      = time.Second
	DefaultManualTimeout   = 20 * time.Second
	DefaultConfirmWindow   = 5 * time.Second
	DefaultAlertCapacity   = 100
	DefaultHistoryCapacity = 300
)

// DefaultConfig returns the stock plant configuration.
func DefaultConfig() Config {
	return Config{
		TickPeriod:      DefaultTickPeriod,
		Smoothing:       plant.DefaultSmoothing,
		ManualTimeout:   DefaultManualTimeout,
		ConfirmWindow:   DefaultConfirmWindow,
		AlertCapacity:   DefaultAlertCapacity,
		HistoryCapacity: DefaultHistoryCapacity,
		Initial:         plant.DefaultState(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickPeriod <= 0 {
		c.TickPeriod = d.TickPeriod
	}
	if c.Smoothing <= 0 {
		c.Smoothing = d.Smoothing
	}
	if c.ManualTimeout <= 0 {
		c.ManualTimeout = d.ManualTimeout
	}
	if c.ConfirmWindow <= 0 {
		c.ConfirmWindow = d.ConfirmWindow
	}
	if c.AlertCapacity <= 0 {
		c.AlertCapacity = d.AlertCapacity
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.Initial == (plant.State{}) {
		c.Initial = d.Initial
	}
	return c
}

type settings struct {
	clock     Clock
	rng       plant.Rand
	logger    *slog.Logger
	runIDs    RunIDGenerator
	observers []Observer
	ticks     <-chan time.Time
}

// Option configures a Simulator or an Engine.
type Option func(*settings)

// WithClock sets the wall clock used for timestamps and deadlines.
// Default: SystemClock.
func WithClock(c Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithRand sets the random source. Default: math/rand seeded from Config.Seed.
func WithRand(r plant.Rand) Option {
	return func(s *settings) {
		s.rng = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *settings) {
		s.runIDs = g
	}
}

// WithObserver registers an observer for every Report. Engine only.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, o)
	}
}

// WithTicks replaces the engine's ticker with c. Each receive triggers one
// tick. Engine only; used by tests to step the loop by hand.
func WithTicks(c <-chan time.Time) Option {
	return func(s *settings) {
		s.ticks = c
	}
}
