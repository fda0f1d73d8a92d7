package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// CommandEntry is a journaled command with the tick and time it was applied.
type CommandEntry struct {
	Tick int64     `json:"tick"`
	At   time.Time `json:"timestamp"`
	engine.CommandRecord
}

// AlertEntry is a journaled alert with the tick it was raised in.
type AlertEntry struct {
	Tick int64 `json:"tick"`
	engine.Alert
}

// ListRuns returns all runs, oldest first.
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, config
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
// Returns ErrNotFound if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, config
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run.
// Returns ErrNotFound if the journal is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, config
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return run, err
}

// ReadSamples returns every sample of a run in tick order.
func (s *Store) ReadSamples(ctx context.Context, runID string) ([]engine.HistorySample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, at, state
		FROM samples
		WHERE run_id = ?
		ORDER BY tick ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []engine.HistorySample{}
	for rows.Next() {
		var (
			sample    engine.HistorySample
			at, state string
		)
		if err := rows.Scan(&sample.Tick, &at, &state); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if sample.At, err = parseTime(at); err != nil {
			return nil, err
		}
		var st plant.State
		if err := unmarshalJSON(state, &st); err != nil {
			return nil, fmt.Errorf("unmarshal sample state at tick %d: %w", sample.Tick, err)
		}
		sample.State = st
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// ReadAlerts returns every alert of a run in id order, including alerts that
// an acknowledgement later cleared from the live log.
func (s *Store) ReadAlerts(ctx context.Context, runID string) ([]AlertEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tick, at, severity, message
		FROM alerts
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []AlertEntry{}
	for rows.Next() {
		var (
			e            AlertEntry
			at, severity string
		)
		if err := rows.Scan(&e.ID, &e.Tick, &at, &severity, &e.Message); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if err := e.Severity.UnmarshalText([]byte(severity)); err != nil {
			return nil, fmt.Errorf("alert %d: %w", e.ID, err)
		}
		alerts = append(alerts, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// ReadCommands returns every command of a run in seq order.
func (s *Store) ReadCommands(ctx context.Context, runID string) ([]CommandEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tick, at, command, outcome
		FROM commands
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	commands := []CommandEntry{}
	for rows.Next() {
		var (
			e                    CommandEntry
			at, command, outcome string
		)
		if err := rows.Scan(&e.Seq, &e.Tick, &at, &command, &outcome); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(command, &e.Command); err != nil {
			return nil, fmt.Errorf("unmarshal command %d: %w", e.Seq, err)
		}
		if err := e.Outcome.UnmarshalText([]byte(outcome)); err != nil {
			return nil, fmt.Errorf("command %d: %w", e.Seq, err)
		}
		commands = append(commands, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run            Run
		startedAt, cfg string
	)
	if err := row.Scan(&run.ID, &startedAt, &cfg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if err := unmarshalJSON(cfg, &run.Config); err != nil {
		return Run{}, fmt.Errorf("unmarshal run config: %w", err)
	}
	return run, nil
}
