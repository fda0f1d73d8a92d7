package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Severity string // optional - minimum alert severity
	List     bool
}

// TraceEvent is a single command or alert in the run timeline.
type TraceEvent struct {
	Tick     int64           `json:"tick"`
	At       time.Time       `json:"timestamp"`
	Type     string          `json:"type"` // "command" or "alert"
	Command  *engine.Command `json:"command,omitempty"`
	Outcome  string          `json:"outcome,omitempty"`
	Severity string          `json:"severity,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      store.Run    `json:"run"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	Samples         int          `json:"samples"`
	Commands        int          `json:"commands"`
	Alerts          int          `json:"alerts"`
	PeakTemperature float64      `json:"peak_temperature"`
	WorstStatus     plant.Status `json:"worst_status"`
	FinalStatus     plant.Status `json:"final_status"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a journaled run",
		Long: `Read a run back from the SQLite journal.

The output includes:
- Timeline: operator commands and alerts in the order they happened,
  including alerts that were later acknowledged and cleared
- Stats: sample count, peak temperature and worst overall status

Examples:
  scada trace --db ./scada.db
  scada trace --db ./scada.db --run 0190c5e2-...
  scada trace --db ./scada.db --severity WARNING
  scada trace --db ./scada.db --list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Severity, "severity", "", "only show alerts at or above this severity")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list journaled runs instead of tracing one")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	minSeverity := plant.StatusNormal
	if opts.Severity != "" {
		if err := minSeverity.UnmarshalText([]byte(opts.Severity)); err != nil {
			return WrapExitError(ExitCommandError, "invalid --severity", err)
		}
	}

	if !fileExists(opts.Database) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, opts, st, cmd)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result, err := buildTrace(ctx, st, run, minSeverity)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(opts, cmd, result)
}

func listRuns(ctx context.Context, opts *TraceOptions, st *store.Store, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: runs})
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  tick %s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Config.TickPeriod)
	}
	return nil
}

// buildTrace reads a run's commands, alerts and samples into a timeline.
// Alerts below minSeverity are left out of the timeline but still counted.
func buildTrace(ctx context.Context, st *store.Store, run store.Run, minSeverity plant.Status) (TraceResult, error) {
	commands, err := st.ReadCommands(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	alerts, err := st.ReadAlerts(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	samples, err := st.ReadSamples(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}

	timeline := make([]TraceEvent, 0, len(commands)+len(alerts))
	for _, c := range commands {
		cmd := c.Command
		timeline = append(timeline, TraceEvent{
			Tick:    c.Tick,
			At:      c.At,
			Type:    "command",
			Command: &cmd,
			Outcome: c.Outcome.String(),
		})
	}
	for _, a := range alerts {
		if a.Severity < minSeverity {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Tick:     a.Tick,
			At:       a.At,
			Type:     "alert",
			Severity: a.Severity.String(),
			Message:  a.Message,
		})
	}
	// Commands were appended first, so a stable sort keeps a command ahead
	// of the alerts it raised.
	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].Tick != timeline[j].Tick {
			return timeline[i].Tick < timeline[j].Tick
		}
		return timeline[i].At.Before(timeline[j].At)
	})

	stats := TraceStats{
		Samples:  len(samples),
		Commands: len(commands),
		Alerts:   len(alerts),
	}
	for _, s := range samples {
		if s.State.Temperature > stats.PeakTemperature {
			stats.PeakTemperature = s.State.Temperature
		}
		if s.State.Status > stats.WorstStatus {
			stats.WorstStatus = s.State.Status
		}
	}
	if n := len(samples); n > 0 {
		stats.FinalStatus = samples[n-1].State.Status
	}

	return TraceResult{Run: run, Timeline: timeline, Stats: stats}, nil
}

func outputTraceText(opts *TraceOptions, cmd *cobra.Command, result TraceResult) error {
	f := opts.formatter(cmd)
	p := f.Printer()
	w := f.Writer

	fmt.Fprintf(w, "Run: %s (started %s)\n", result.Run.ID, result.Run.StartedAt.Format(time.RFC3339))
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No commands or alerts.")
	} else {
		fmt.Fprintln(w, "Timeline:")
		for _, e := range result.Timeline {
			switch e.Type {
			case "command":
				fmt.Fprintf(w, "  [tick %4d] > %s (%s)\n", e.Tick, e.Command, e.Outcome)
			default:
				fmt.Fprintf(w, "  [tick %4d] %-8s %s\n", e.Tick, e.Severity, e.Message)
			}
		}
	}

	s := result.Stats
	fmt.Fprintln(w)
	p.Fprintf(w, "Stats: %d samples, %d commands, %d alerts\n", s.Samples, s.Commands, s.Alerts)
	p.Fprintf(w, "  Peak temperature: %.2f °C\n", s.PeakTemperature)
	fmt.Fprintf(w, "  Worst status: %s, final status: %s\n", s.WorstStatus, s.FinalStatus)
	f.VerboseLog("journal: %s", opts.Database)
	return nil
}
