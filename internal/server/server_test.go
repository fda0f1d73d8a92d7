package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanudai/Nuclear-SCADA/internal/advisor"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
	"github.com/tanudai/Nuclear-SCADA/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	srv    *Server
	eng    *engine.Engine
	clock  *testutil.FakeClock
	ticks  chan time.Time
	cancel context.CancelFunc
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, adv advisor.Advisor) *harness {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.Epoch)
	ticks := make(chan time.Time)
	eng := engine.New(engine.DefaultConfig(),
		engine.WithClock(clock),
		engine.WithRand(testutil.ConstantRand(0.5)),
		engine.WithLogger(quietLogger()),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-http")),
		engine.WithTicks(ticks),
	)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-eng.Done()
	})

	srv := New(eng, Options{Advisor: adv, Logger: quietLogger()})
	return &harness{srv: srv, eng: eng, clock: clock, ticks: ticks, cancel: cancel}
}

func (h *harness) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := h.clock.Advance(time.Second)
		select {
		case h.ticks <- now:
		case <-time.After(time.Second):
			t.Fatal("engine did not accept tick")
		}
	}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-http", body["run_id"])
}

func TestGetState(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/v1/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "AUTO", body["control_mode"])
	assert.NotContains(t, body, "history")
	state := body["state"].(map[string]any)
	assert.EqualValues(t, 450, state["reactor_temperature"])
	assert.Equal(t, "NORMAL", state["overall_status"])
	assert.Equal(t, "Standby", state["eccs_status"])
}

func TestGetHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.tick(t, 5)
	require.Eventually(t, func() bool { return h.eng.Snapshot().Tick == 5 }, time.Second, 5*time.Millisecond)

	w := h.do(t, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[HistoryResponse](t, w).Samples, 5)

	w = h.do(t, http.MethodGet, "/api/v1/history?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	samples := decode[HistoryResponse](t, w).Samples
	require.Len(t, samples, 2)
	assert.Equal(t, int64(4), samples[0].Tick)
	assert.Equal(t, int64(5), samples[1].Tick)

	w = h.do(t, http.MethodGet, "/api/v1/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistory_EmptyIsArray(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/v1/history", "")

	assert.Contains(t, w.Body.String(), `"samples":[]`)
}

func TestSetRods(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/commands/rods", `{"position": 72.4}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CommandResponse](t, w)
	assert.Equal(t, engine.Applied, resp.Outcome)
	assert.Equal(t, engine.ModeManual, resp.Mode)
	assert.Equal(t, engine.CommandSetRods, resp.Command.Kind)

	alerts := decode[AlertsResponse](t, h.do(t, http.MethodGet, "/api/v1/alerts", "")).Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, "MANUAL OVERRIDE: Control rods set to 72%.", alerts[0].Message)
}

func TestSetRods_BadBody(t *testing.T) {
	h := newHarness(t, nil)

	for _, body := range []string{`{}`, `{"position": "high"}`, `not json`} {
		w := h.do(t, http.MethodPost, "/api/v1/commands/rods", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, engine.ModeAuto, h.eng.Snapshot().Mode)
}

func TestScram(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/commands/scram", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100.0, h.eng.Snapshot().RodTarget)
}

func TestTogglePump(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/commands/pumps/b/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CommandResponse](t, w)
	assert.Equal(t, plant.PumpB, resp.Command.Pump)
	assert.False(t, resp.State.PumpB)
	assert.True(t, resp.State.PumpA)

	w = h.do(t, http.MethodPost, "/api/v1/commands/pumps/c/toggle", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGridSync_NoOpWhenConnected(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/commands/grid/sync", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.NoOp, decode[CommandResponse](t, w).Outcome)
}

func TestActivateECCS_TwoPresses(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodPost, "/api/v1/commands/eccs/activate", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, engine.AwaitingConfirmation, decode[CommandResponse](t, w).Outcome)
	assert.True(t, h.eng.Snapshot().ECCSConfirmOpen)

	w = h.do(t, http.MethodPost, "/api/v1/commands/eccs/activate", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CommandResponse](t, w)
	assert.Equal(t, engine.Applied, resp.Outcome)
	assert.Equal(t, plant.ECCSActive, resp.State.ECCS)
}

func TestAckAlerts(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/api/v1/commands/scram", "")

	w := h.do(t, http.MethodPost, "/api/v1/alerts/ack", "")
	require.Equal(t, http.StatusOK, w.Code)

	alerts := decode[AlertsResponse](t, h.do(t, http.MethodGet, "/api/v1/alerts", "")).Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, engine.MsgAcknowledged, alerts[0].Message)
}

func TestCommandAfterStop(t *testing.T) {
	h := newHarness(t, nil)
	h.cancel()
	<-h.eng.Done()

	w := h.do(t, http.MethodPost, "/api/v1/commands/scram", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdvisorPrompt(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/api/v1/advisor/prompt?kind=emergency", "")

	require.Equal(t, http.StatusOK, w.Code)
	adv := decode[advisor.Advice](t, w)
	assert.Equal(t, "emergency", adv.Kind)
	assert.Contains(t, adv.Prompt, "Emergency Operating Procedures")
	assert.True(t, adv.Fallback)
	assert.Equal(t, advisor.FallbackEmergency, adv.Text)

	w = h.do(t, http.MethodGet, "/api/v1/advisor/prompt?kind=poetry", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdvisorPrompt_WithAdvisor(t *testing.T) {
	adv := advisor.AdvisorFunc(func(_ context.Context, kind advisor.Kind, _ string) (string, error) {
		return "All parameters nominal.", nil
	})
	h := newHarness(t, adv)

	w := h.do(t, http.MethodGet, "/api/v1/advisor/prompt", "")

	require.Equal(t, http.StatusOK, w.Code)
	got := decode[advisor.Advice](t, w)
	assert.Equal(t, "diagnosis", got.Kind)
	assert.Equal(t, "All parameters nominal.", got.Text)
	assert.False(t, got.Fallback)
}

func TestStream(t *testing.T) {
	h := newHarness(t, nil)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSnap := func() engine.Snapshot {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var snap engine.Snapshot
		require.NoError(t, json.NewDecoder(bytes.NewReader(data)).Decode(&snap))
		return snap
	}

	first := readSnap()
	assert.Equal(t, int64(0), first.Tick)
	assert.Empty(t, first.History)

	h.tick(t, 1)
	assert.Equal(t, int64(1), readSnap().Tick)
}

func TestStream_ClosesOnShutdown(t *testing.T) {
	h := newHarness(t, nil)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	h.cancel()
	<-h.eng.Done()

	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	srv := New(h.eng, Options{Addr: "127.0.0.1:0", Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
