package engine

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSimulator returns a simulator with randomness removed and a clock
// the test advances by hand.
func newTestSimulator(t *testing.T, cfg Config) (*Simulator, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.Epoch)
	sim := NewSimulator(cfg,
		WithClock(clock),
		WithRand(testutil.ConstantRand(0.5)),
		WithLogger(quietLogger()),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-test")),
	)
	return sim, clock
}

// tickFor advances the clock one period before each tick.
func tickFor(sim *Simulator, clock *testutil.FakeClock, n int) []Report {
	reports := make([]Report, 0, n)
	for i := 0; i < n; i++ {
		clock.Advance(time.Second)
		reports = append(reports, sim.Tick())
	}
	return reports
}

func messages(alerts []Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Message
	}
	return out
}

func countAlerts(reports []Report, msg string) int {
	n := 0
	for _, r := range reports {
		for _, a := range r.Alerts {
			if a.Message == msg {
				n++
			}
		}
	}
	return n
}

func TestSimulator_InitialSnapshot(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	snap := sim.Snapshot()

	assert.Equal(t, "run-test", snap.RunID)
	assert.Equal(t, int64(0), snap.Tick)
	assert.Equal(t, ModeAuto, snap.Mode)
	assert.Nil(t, snap.ReversionAt)
	assert.False(t, snap.ECCSConfirmOpen)
	assert.Equal(t, plant.DefaultState().Rounded(), snap.State)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Alerts)
}

func TestSimulator_ZeroConfigUsesDefaults(t *testing.T) {
	sim, _ := newTestSimulator(t, Config{})

	cfg := sim.Config()
	assert.Equal(t, DefaultTickPeriod, cfg.TickPeriod)
	assert.Equal(t, DefaultManualTimeout, cfg.ManualTimeout)
	assert.Equal(t, DefaultAlertCapacity, cfg.AlertCapacity)
	assert.Equal(t, plant.DefaultState(), cfg.Initial)
}

func TestSimulator_StableAtPinnedDemand(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	for _, r := range tickFor(sim, clock, 1000) {
		require.Equal(t, plant.StatusNormal, r.Sample.State.Status, "tick %d", r.Tick)
		require.Equal(t, plant.ECCSStandby, r.Sample.State.ECCS, "tick %d", r.Tick)
		require.Empty(t, r.Alerts, "tick %d", r.Tick)
	}

	snap := sim.Snapshot()
	assert.Equal(t, int64(1000), snap.Tick)
	assert.Equal(t, ModeAuto, snap.Mode)
	assert.Equal(t, 300.0, snap.State.GridDemand)
	assert.Equal(t, plant.GridConnected, snap.State.GridSync)
	assert.Equal(t, 100.0, snap.State.CoolantFlow)
}

func TestSimulator_ManualRodsConverge(t *testing.T) {
	sim, clock := newTestSimulator(t, Config{ManualTimeout: time.Hour})

	r := sim.Apply(SetRods(80))
	require.Equal(t, Applied, r.Command.Outcome)
	assert.Equal(t, ModeManual, sim.Mode())

	prev := sim.State().RodPosition
	for _, r := range tickFor(sim, clock, 200) {
		pos := r.Sample.State.RodPosition
		require.GreaterOrEqual(t, pos, prev, "tick %d", r.Tick)
		require.LessOrEqual(t, pos, 80.0)
		prev = pos
	}
	assert.InDelta(t, 80, prev, 0.01)
	assert.Equal(t, 80.0, sim.Snapshot().RodTarget, "manual target is not auto-adjusted")
}

func TestSimulator_SetRodsClampsAndAlerts(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(SetRods(150))
	require.Len(t, r.Alerts, 1)
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to 150%.", r.Alerts[0].Message, "alert reports the requested value")
	assert.Equal(t, plant.StatusWarning, r.Alerts[0].Severity)
	assert.Equal(t, 100.0, sim.Snapshot().RodTarget)

	r = sim.Apply(SetRods(-5))
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to -5%.", r.Alerts[0].Message)
	assert.Equal(t, 0.0, sim.Snapshot().RodTarget)

	r = sim.Apply(SetRods(42.4))
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to 42%.", r.Alerts[0].Message)

	r = sim.Apply(SetRods(42.5))
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to 43%.", r.Alerts[0].Message, "halves round away from zero")
	assert.Equal(t, 42.5, sim.Snapshot().RodTarget)
}

func TestSimulator_Scram(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(Scram())

	assert.Equal(t, Applied, r.Command.Outcome)
	assert.Equal(t, 100.0, sim.Snapshot().RodTarget)
	assert.Equal(t, ModeManual, sim.Mode())
	assert.Equal(t, []string{"MANUAL OVERRIDE: Control rods set to 100%."}, messages(r.Alerts))
}

func TestSimulator_TogglePump(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(TogglePump(plant.PumpA))
	assert.Equal(t, []string{"MANUAL OVERRIDE: Coolant Pump A turned OFF."}, messages(r.Alerts))
	assert.False(t, sim.State().PumpA)
	assert.True(t, sim.State().PumpB)

	r = sim.Apply(TogglePump(plant.PumpA))
	assert.Equal(t, []string{"MANUAL OVERRIDE: Coolant Pump A turned ON."}, messages(r.Alerts))

	sim.Apply(TogglePump(plant.PumpB))
	reports := tickFor(sim, clock, 10)
	last := reports[len(reports)-1].Sample.State
	assert.False(t, last.PumpB)
	assert.Less(t, last.CoolantFlow, 80.0, "flow converges toward one pump's capacity")
}

func TestSimulator_TogglePumpIgnoresUnknownPump(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(Command{Kind: CommandTogglePump, Pump: plant.Pump(7)})

	assert.Equal(t, NoOp, r.Command.Outcome)
	assert.Equal(t, ModeAuto, sim.Mode())
	assert.Empty(t, r.Alerts)
}

func TestSimulator_UnknownCommand(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(Command{Kind: CommandKind(99)})

	assert.Equal(t, NoOp, r.Command.Outcome)
	assert.Equal(t, ModeAuto, sim.Mode())
}

func TestSimulator_ManualRevertsAfterTimeout(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	sim.Apply(SetRods(70))
	require.Equal(t, ModeManual, sim.Mode())
	start := clock.Now()

	reports := tickFor(sim, clock, 19)
	assert.Equal(t, ModeManual, sim.Mode())
	assert.Zero(t, countAlerts(reports, MsgReturnedToAuto))

	r := tickFor(sim, clock, 1)[0]
	assert.Equal(t, 20*time.Second, clock.Elapsed(start))
	assert.Equal(t, ModeAuto, sim.Mode())
	require.NotEmpty(t, r.Alerts)
	assert.Equal(t, MsgReturnedToAuto, r.Alerts[0].Message)
	assert.Equal(t, plant.StatusNormal, r.Alerts[0].Severity)

	// Exactly once.
	assert.Zero(t, countAlerts(tickFor(sim, clock, 30), MsgReturnedToAuto))
}

func TestSimulator_CommandRearmsReversion(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	sim.Apply(SetRods(70))
	tickFor(sim, clock, 15)
	sim.Apply(TogglePump(plant.PumpB))

	reports := tickFor(sim, clock, 19)
	assert.Zero(t, countAlerts(reports, MsgReturnedToAuto), "superseded deadline must not fire")
	assert.Equal(t, ModeManual, sim.Mode())

	r := tickFor(sim, clock, 1)[0]
	assert.Contains(t, messages(r.Alerts), MsgReturnedToAuto)
	assert.Equal(t, ModeAuto, sim.Mode())
}

func TestSimulator_ReversionCheckedOnCommand(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	sim.Apply(SetRods(70))
	clock.Advance(25 * time.Second)

	r := sim.Apply(SetRods(60))

	require.Len(t, r.Alerts, 2)
	assert.Equal(t, MsgReturnedToAuto, r.Alerts[0].Message)
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to 60%.", r.Alerts[1].Message)
	assert.Equal(t, ModeManual, sim.Mode())
	require.NotNil(t, sim.Snapshot().ReversionAt)
	assert.Equal(t, clock.Now().Add(20*time.Second), *sim.Snapshot().ReversionAt)
}

func TestSimulator_ECCSSinglePressHasNoEffect(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(ActivateECCS())
	assert.Equal(t, AwaitingConfirmation, r.Command.Outcome)
	assert.Equal(t, plant.ECCSStandby, sim.State().ECCS)
	assert.Equal(t, ModeAuto, sim.Mode(), "arming the gate is not an override")
	assert.True(t, sim.Snapshot().ECCSConfirmOpen)

	tickFor(sim, clock, 5)
	assert.False(t, sim.Snapshot().ECCSConfirmOpen, "gate disarms silently")

	r = sim.Apply(ActivateECCS())
	assert.Equal(t, AwaitingConfirmation, r.Command.Outcome, "press after the window re-arms")
	assert.Equal(t, plant.ECCSStandby, sim.State().ECCS)
}

func TestSimulator_ECCSConfirmedActivation(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	sim.Apply(ActivateECCS())
	clock.Advance(4900 * time.Millisecond)
	r := sim.Apply(ActivateECCS())

	assert.Equal(t, Applied, r.Command.Outcome)
	assert.Equal(t, plant.ECCSActive, sim.State().ECCS)
	assert.Equal(t, 100.0, sim.Snapshot().RodTarget)
	assert.Equal(t, ModeManual, sim.Mode())
	require.Len(t, r.Alerts, 1)
	assert.Equal(t, MsgECCSActivated, r.Alerts[0].Message)
	assert.Equal(t, plant.StatusCritical, r.Alerts[0].Severity)
}

func TestSimulator_ECCSConfirmWindowIsExclusive(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	sim.Apply(ActivateECCS())
	clock.Advance(5 * time.Second)
	r := sim.Apply(ActivateECCS())

	assert.Equal(t, AwaitingConfirmation, r.Command.Outcome)
	assert.Equal(t, plant.ECCSStandby, sim.State().ECCS)
}

func TestSimulator_ECCSActivateWhenNotStandby(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	sim.Apply(ActivateECCS())
	sim.Apply(ActivateECCS())
	require.Equal(t, plant.ECCSActive, sim.State().ECCS)

	assert.Equal(t, AwaitingConfirmation, sim.Apply(ActivateECCS()).Command.Outcome)
	r := sim.Apply(ActivateECCS())
	assert.Equal(t, NoOp, r.Command.Outcome)
	assert.Empty(t, r.Alerts)
}

func TestSimulator_ECCSDepletionFaultsOnce(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())
	sim.Apply(ActivateECCS())
	sim.Apply(ActivateECCS())

	reports := tickFor(sim, clock, 80)

	assert.Equal(t, 1, countAlerts(reports, MsgECCSDepleted))
	assert.Zero(t, countAlerts(reports, MsgECCSFault))
	assert.Equal(t, plant.ECCSActive, reports[48].Sample.State.ECCS)
	assert.Equal(t, plant.ECCSFault, reports[49].Sample.State.ECCS)
	assert.Contains(t, messages(reports[49].Alerts), MsgECCSDepleted)
	assert.Equal(t, 0.0, sim.State().ECCSReservoir)

	for i := 1; i < len(reports); i++ {
		require.LessOrEqual(t, reports[i].Sample.State.ECCSReservoir, reports[i-1].Sample.State.ECCSReservoir)
	}
}

func TestSimulator_GridSync(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Initial.GridSync = plant.GridDisconnected
	sim, clock := newTestSimulator(t, cfg)

	r := sim.Apply(RequestGridSync())
	assert.Equal(t, Applied, r.Command.Outcome)
	assert.Equal(t, []string{MsgGridSynchronizing}, messages(r.Alerts))
	assert.Equal(t, plant.GridSynchronizing, sim.State().GridSync)

	r = sim.Apply(RequestGridSync())
	assert.Equal(t, NoOp, r.Command.Outcome)
	assert.Empty(t, r.Alerts)

	r = tickFor(sim, clock, 1)[0]
	assert.Equal(t, plant.GridConnected, r.Sample.State.GridSync)
	assert.Equal(t, []string{MsgGridConnected}, messages(r.Alerts))
}

func TestSimulator_GridSyncNoOpStillOverrides(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(RequestGridSync())

	assert.Equal(t, NoOp, r.Command.Outcome)
	assert.Equal(t, ModeManual, sim.Mode())
}

func TestSimulator_StatusAlertsAreEdgeTriggered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Initial.PumpA = false
	cfg.Initial.PumpB = false
	sim, clock := newTestSimulator(t, cfg)

	reports := tickFor(sim, clock, 120)

	assert.Equal(t, 1, countAlerts(reports, MsgWarning))
	assert.Equal(t, 1, countAlerts(reports, MsgCritical))
	assert.Equal(t, []string{MsgWarning}, messages(reports[27].Alerts))
	assert.Equal(t, []string{MsgCritical}, messages(reports[54].Alerts))
	assert.Equal(t, plant.StatusCritical, sim.State().Status)
}

func TestSimulator_AlertLogIsBounded(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())

	for i := 0; i < 150; i++ {
		sim.Apply(TogglePump(plant.PumpA))
		require.LessOrEqual(t, len(sim.Snapshot().Alerts), DefaultAlertCapacity)
	}

	alerts := sim.Snapshot().Alerts
	require.Len(t, alerts, DefaultAlertCapacity)
	assert.Equal(t, int64(51), alerts[0].ID, "oldest entries are dropped")
	assert.Equal(t, int64(150), alerts[len(alerts)-1].ID)
}

func TestSimulator_AcknowledgeClearsLog(t *testing.T) {
	sim, _ := newTestSimulator(t, DefaultConfig())
	for i := 0; i < 5; i++ {
		sim.Apply(SetRods(float64(i * 10)))
	}

	r := sim.Apply(AcknowledgeAlerts())

	assert.Equal(t, Applied, r.Command.Outcome)
	alerts := sim.Snapshot().Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, MsgAcknowledged, alerts[0].Message)
	assert.Equal(t, plant.StatusNormal, alerts[0].Severity)
	assert.Equal(t, int64(6), alerts[0].ID, "ids keep increasing across a clear")
}

func TestSimulator_AcknowledgeKeepsMode(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	r := sim.Apply(AcknowledgeAlerts())
	assert.Equal(t, Applied, r.Command.Outcome)
	assert.Equal(t, ModeAuto, sim.Mode())
	assert.Nil(t, sim.Snapshot().ReversionAt)

	// In Manual, acknowledging neither re-arms nor cancels the reversion.
	sim.Apply(SetRods(60))
	deadline := *sim.Snapshot().ReversionAt
	clock.Advance(10 * time.Second)
	sim.Apply(AcknowledgeAlerts())
	assert.Equal(t, ModeManual, sim.Mode())
	assert.Equal(t, deadline, *sim.Snapshot().ReversionAt)

	clock.Advance(10 * time.Second)
	r = sim.Tick()
	assert.Equal(t, ModeAuto, sim.Mode())
	assert.Equal(t, MsgReturnedToAuto, r.Alerts[0].Message)
}

func TestSimulator_HistoryIsBounded(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	tickFor(sim, clock, 350)

	history := sim.Snapshot().History
	require.Len(t, history, DefaultHistoryCapacity)
	assert.Equal(t, int64(51), history[0].Tick)
	assert.Equal(t, int64(350), history[len(history)-1].Tick)
	for i := 1; i < len(history); i++ {
		require.Equal(t, history[i-1].Tick+1, history[i].Tick)
	}
}

func TestSimulator_SnapshotIsACopy(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())
	tickFor(sim, clock, 3)
	sim.Apply(SetRods(10))

	snap := sim.Snapshot()
	snap.History[0].Tick = 999
	snap.Alerts[0].Message = "tampered"

	fresh := sim.Snapshot()
	assert.Equal(t, int64(1), fresh.History[0].Tick)
	assert.True(t, strings.HasPrefix(fresh.Alerts[0].Message, "MANUAL OVERRIDE"))
}

func TestSimulator_PublishedStateIsRounded(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	r := tickFor(sim, clock, 1)[0]

	assert.Equal(t, r.Sample.State, r.Sample.State.Rounded())
	assert.Equal(t, sim.state.Rounded(), sim.State())
	assert.NotEqual(t, sim.state.Radiation, sim.State().Radiation, "internal state keeps full precision")
}

func TestSimulator_Rounding(t *testing.T) {
	t.Run("full precision carried", func(t *testing.T) {
		sim, clock := newTestSimulator(t, DefaultConfig())
		tickFor(sim, clock, 400)

		assert.Equal(t, 100.0, sim.State().CoolantFlow)
	})

	t.Run("compound rounding", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CompoundRounding = true
		sim, clock := newTestSimulator(t, cfg)

		for i := 0; i < 400; i++ {
			r := tickFor(sim, clock, 1)[0]
			require.Equal(t, r.Sample.State, sim.state, "tick %d feeds back the rounded state", r.Tick)
		}
		// Once the per-tick step is below the rounding step the flow stalls.
		assert.Less(t, sim.State().CoolantFlow, 100.0)
		assert.InDelta(t, 100.0, sim.State().CoolantFlow, 0.1)
	})
}

func TestSimulator_ReportsCarryRunAndTick(t *testing.T) {
	sim, clock := newTestSimulator(t, DefaultConfig())

	r := tickFor(sim, clock, 2)[1]
	assert.Equal(t, "run-test", r.RunID)
	assert.Equal(t, int64(2), r.Tick)
	assert.Equal(t, testutil.Epoch.Add(2*time.Second), r.At)
	assert.Nil(t, r.Command)

	c := sim.Apply(AcknowledgeAlerts())
	assert.Equal(t, int64(2), c.Tick)
	assert.Nil(t, c.Sample)
	assert.Equal(t, int64(1), c.Command.Seq)
	assert.Equal(t, int64(2), sim.Apply(Scram()).Command.Seq)
}
