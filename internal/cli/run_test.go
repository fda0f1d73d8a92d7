package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/store"
	"github.com/tanudai/Nuclear-SCADA/internal/testutil"
)

func TestRun_BatchWritesJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scada.db")

	out, err := execute(t, NewRunCommand, quietRoot("json"), "--ticks", "25", "--db", dbPath)
	require.NoError(t, err)

	resp, summary := decodeResponse[RunSummary](t, []byte(out))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(25), summary.Ticks)
	assert.Equal(t, engine.ModeAuto, summary.Mode)
	assert.Equal(t, plant.StatusNormal, summary.State.Status)
	assert.Equal(t, dbPath, summary.Journal)
	assert.NotEmpty(t, summary.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.ID)

	samples, err := st.ReadSamples(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, samples, 25)
	assert.Equal(t, time.Second, samples[1].At.Sub(samples[0].At), "batch ticks are stamped one period apart")
}

func TestRun_TextOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	opts := &RunOptions{
		RootOptions: quietRoot("text"),
		Ticks:       10,
		RunIDs:      testutil.NewFixedRunIDGenerator("run-fixed"),
	}

	require.NoError(t, runSimulation(opts, cmd))

	out := buf.String()
	assert.Contains(t, out, "Run run-fixed: 10 ticks")
	assert.Contains(t, out, "Status:      NORMAL (AUTO mode)")
	assert.Contains(t, out, "ECCS:        Standby (100%)")
	assert.Contains(t, out, "Alerts:      0")
	assert.NotContains(t, out, "Journal:")
}

func TestRun_ConfigJournalPath(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-config.db")
	cfgPath := filepath.Join(dir, "plant.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("journal:\n  path: "+dbPath+"\nsimulation:\n  seed: 9\n"), 0o644))

	opts := quietRoot("json")
	opts.Config = cfgPath
	out, err := execute(t, NewRunCommand, opts, "--ticks", "3")
	require.NoError(t, err)

	_, summary := decodeResponse[RunSummary](t, []byte(out))
	assert.Equal(t, dbPath, summary.Journal)
	assert.FileExists(t, dbPath)
}

func TestRun_Realtime(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fast.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("simulation:\n  tick_period: 10ms\n"), 0o644))

	opts := quietRoot("json")
	opts.Config = cfgPath
	out, err := execute(t, NewRunCommand, opts, "--realtime", "--ticks", "3", "--db", filepath.Join(dir, "rt.db"))
	require.NoError(t, err)

	_, summary := decodeResponse[RunSummary](t, []byte(out))
	assert.GreaterOrEqual(t, summary.Ticks, int64(3))
}

func TestRun_InvalidTicks(t *testing.T) {
	_, err := execute(t, NewRunCommand, quietRoot("text"), "--ticks", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--ticks must be positive")
}

func TestRun_BadConfig(t *testing.T) {
	opts := quietRoot("text")
	opts.Config = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := execute(t, NewRunCommand, opts, "--ticks", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_UnopenableJournal(t *testing.T) {
	_, err := execute(t, NewRunCommand, quietRoot("text"), "--ticks", "1", "--db", "/nonexistent/dir/scada.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_RejectsArgs(t *testing.T) {
	_, err := execute(t, NewRunCommand, quietRoot("text"), "extra")
	assert.Error(t, err)
}
