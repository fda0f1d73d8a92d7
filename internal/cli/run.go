package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Ticks    int64
	Realtime bool
	Database string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the result of a finished run.
type RunSummary struct {
	RunID   string             `json:"run_id"`
	Ticks   int64              `json:"ticks"`
	Mode    engine.ControlMode `json:"control_mode"`
	Alerts  int                `json:"alerts"`
	Journal string             `json:"journal,omitempty"`
	State   plant.State        `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulator without operator input",
		Long: `Run the plant simulator for a number of ticks and print the final state.

By default ticks are computed back to back and stamped with simulated time
(one tick period apart). With --realtime the engine loop runs on the wall
clock instead; --ticks 0 then runs until interrupted.

Every tick, alert and command is written to the SQLite journal when --db
(or journal.path in the config file) is set.

Examples:
  scada run --ticks 1000
  scada run --ticks 600 --db ./scada.db
  scada run --realtime --ticks 0 --config plant.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 1000, "number of ticks to run (0 with --realtime runs until interrupted)")
	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "tick on the wall clock")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides journal.path)")

	return cmd
}

// alertCounter is an observer that counts emitted alerts.
type alertCounter struct {
	n int
}

func (c *alertCounter) Observe(_ context.Context, r engine.Report) error {
	c.n += len(r.Alerts)
	return nil
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Ticks < 0 || (opts.Ticks == 0 && !opts.Realtime) {
		return NewExitError(ExitCommandError, "--ticks must be positive (0 is allowed only with --realtime)")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger()
	engineCfg := cfg.Engine()

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}

	var st *store.Store
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	counter := &alertCounter{}
	base := []engine.Option{engine.WithLogger(logger)}
	if opts.RunIDs != nil {
		base = append(base, engine.WithRunIDGenerator(opts.RunIDs))
	}

	var summary RunSummary
	if opts.Realtime {
		summary, err = runRealtime(ctx, opts, st, engineCfg, base, counter, logger)
	} else {
		summary, err = runBatch(ctx, opts, st, engineCfg, base, counter, logger)
	}
	if err != nil {
		return err
	}
	summary.Alerts = counter.n
	summary.Journal = dbPath

	return outputRunSummary(opts, cmd, summary)
}

// runBatch drives a Simulator directly with a stepped clock.
func runBatch(ctx context.Context, opts *RunOptions, st *store.Store, cfg engine.Config,
	base []engine.Option, counter *alertCounter, logger *slog.Logger) (RunSummary, error) {

	clock := engine.NewSteppedClock(time.Now().UTC())
	sim := engine.NewSimulator(cfg, append(base, engine.WithClock(clock))...)

	observers := []engine.Observer{counter}
	if st != nil {
		if err := st.BeginRun(ctx, store.Run{ID: sim.RunID(), StartedAt: clock.Now(), Config: sim.Config()}); err != nil {
			return RunSummary{}, WrapExitError(ExitCommandError, "failed to record run", err)
		}
		observers = append(observers, store.NewJournal(st))
	}

	logger.Info("batch run starting", "run_id", sim.RunID(), "ticks", opts.Ticks)
	for i := int64(0); i < opts.Ticks; i++ {
		if ctx.Err() != nil {
			logger.Info("batch run interrupted", "tick", i)
			break
		}
		clock.Advance(cfg.TickPeriod)
		engine.Notify(ctx, logger, observers, sim.Tick())
	}

	snap := sim.Snapshot()
	return RunSummary{
		RunID: snap.RunID,
		Ticks: snap.Tick,
		Mode:  snap.Mode,
		State: snap.State,
	}, nil
}

// runRealtime runs the engine loop until --ticks ticks have elapsed or ctx
// is cancelled.
func runRealtime(ctx context.Context, opts *RunOptions, st *store.Store, cfg engine.Config,
	base []engine.Option, counter *alertCounter, logger *slog.Logger) (RunSummary, error) {

	engOpts := append(base, engine.WithObserver(counter))
	if st != nil {
		engOpts = append(engOpts, engine.WithObserver(store.NewJournal(st)))
	}
	eng := engine.New(cfg, engOpts...)

	if st != nil {
		if err := st.BeginRun(ctx, store.Run{ID: eng.RunID(), StartedAt: time.Now().UTC(), Config: cfg}); err != nil {
			return RunSummary{}, WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if opts.Ticks > 0 {
		snaps, cancel := eng.Subscribe()
		go func() {
			defer cancel()
			for snap := range snaps {
				if snap.Tick >= opts.Ticks {
					eng.Stop()
					return
				}
			}
		}()
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return RunSummary{}, WrapExitError(ExitFailure, "engine error", err)
	}
	logger.Info("engine stopped gracefully")

	snap := eng.Snapshot()
	return RunSummary{
		RunID: snap.RunID,
		Ticks: snap.Tick,
		Mode:  snap.Mode,
		State: snap.State,
	}, nil
}

func outputRunSummary(opts *RunOptions, cmd *cobra.Command, s RunSummary) error {
	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(s)
	}

	p := f.Printer()
	w := f.Writer
	p.Fprintf(w, "Run %s: %d ticks\n", s.RunID, s.Ticks)
	p.Fprintf(w, "  Status:      %s (%s mode)\n", s.State.Status, s.Mode)
	p.Fprintf(w, "  Temperature: %.2f °C\n", s.State.Temperature)
	p.Fprintf(w, "  Power:       %.2f MW (demand %.2f MW)\n", s.State.PowerOutput, s.State.GridDemand)
	p.Fprintf(w, "  Turbine:     %.0f RPM\n", s.State.TurbineSpeed)
	p.Fprintf(w, "  ECCS:        %s (%.0f%%)\n", s.State.ECCS, s.State.ECCSReservoir)
	p.Fprintf(w, "  Alerts:      %d\n", s.Alerts)
	if s.Journal != "" {
		fmt.Fprintf(w, "  Journal:     %s\n", s.Journal)
	}
	return nil
}
