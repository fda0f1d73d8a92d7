package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/config"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/testutil"
)

// DefaultNoise cancels every random term of the plant model.
const DefaultNoise = 0.5

// RunID is the fixed run id of every scenario run.
const RunID = "scenario-run"

// Options configures RunWith.
type Options struct {
	// Observer receives every report, as an engine observer would.
	Observer engine.Observer
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Harness drives one scenario against a fresh simulator.
type Harness struct {
	scenario *Scenario
	sim      *engine.Simulator
	clock    *testutil.FakeClock
	period   time.Duration
	observer engine.Observer
	logger   *slog.Logger
	result   *Result
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(context.Background(), scenario, Options{})
}

// RunWith executes a scenario with options.
//
// Execution flow:
//  1. Build the simulator from the scenario's simulation section
//  2. For k in 0..Ticks: apply the steps at k, then tick (except after Ticks)
//  3. Evaluate assertions against the result
//
// Errors are returned only for observer failures; assertion failures are
// recorded in the result.
func RunWith(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	noise := DefaultNoise
	if scenario.Noise != nil {
		noise = *scenario.Noise
	}

	cfg := config.Default()
	cfg.Simulation = scenario.Simulation
	engineCfg := cfg.Engine()

	clock := testutil.NewFakeClock(testutil.Epoch)
	h := &Harness{
		scenario: scenario,
		clock:    clock,
		period:   engineCfg.TickPeriod,
		observer: opts.Observer,
		logger:   logger,
		result:   NewResult(scenario.Name, scenario.Ticks),
	}
	h.sim = engine.NewSimulator(engineCfg,
		engine.WithClock(clock),
		engine.WithRand(testutil.ConstantRand(noise)),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(RunID)),
	)
	h.result.Statuses = append(h.result.Statuses, h.sim.State().Status)

	if err := h.execute(ctx); err != nil {
		return nil, err
	}

	snap := h.sim.Snapshot()
	h.result.Final = snap
	h.result.Trace.Final = FinalState{
		Tick:     snap.Tick,
		Mode:     snap.Mode,
		Status:   snap.State.Status,
		ECCS:     snap.State.ECCS,
		GridSync: snap.State.GridSync,
		PumpA:    snap.State.PumpA,
		PumpB:    snap.State.PumpB,
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(ctx context.Context) error {
	steps := h.scenario.Steps
	next := 0
	for k := int64(0); k <= h.scenario.Ticks; k++ {
		for next < len(steps) && steps[next].At == k {
			if err := h.apply(ctx, next, steps[next]); err != nil {
				return err
			}
			next++
		}
		if k == h.scenario.Ticks {
			break
		}
		h.clock.Advance(h.period)
		rep := h.sim.Tick()
		h.result.Statuses = append(h.result.Statuses, rep.Sample.State.Status)
		if err := h.record(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) apply(ctx context.Context, index int, step Step) error {
	rep := h.sim.Apply(step.Command)
	out := rep.Command.Outcome
	h.logger.Debug("scenario step",
		"step", index,
		"at", step.At,
		"command", step.Command.String(),
		"outcome", out.String(),
	)
	if step.Expect != "" && step.Expect != out.String() {
		h.result.AddError(fmt.Sprintf("steps[%d] (%s at tick %d): expected outcome %s, got %s",
			index, step.Command, step.At, step.Expect, out))
	}
	return h.record(ctx, rep)
}

func (h *Harness) record(ctx context.Context, rep engine.Report) error {
	h.result.AddReport(rep)
	if h.observer == nil {
		return nil
	}
	if err := h.observer.Observe(ctx, rep); err != nil {
		return fmt.Errorf("observe tick %d: %w", rep.Tick, err)
	}
	return nil
}

// firstTick returns the first tick whose published status is st, or -1.
func (r *Result) firstTick(st plant.Status) int64 {
	for i, s := range r.Statuses {
		if s == st {
			return int64(i)
		}
	}
	return -1
}
