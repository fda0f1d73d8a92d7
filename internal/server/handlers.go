package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tanudai/Nuclear-SCADA/internal/advisor"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// CommandResponse is returned by every command endpoint.
type CommandResponse struct {
	Command engine.Command     `json:"command"`
	Outcome engine.Outcome     `json:"outcome"`
	Mode    engine.ControlMode `json:"control_mode"`
	State   plant.State        `json:"state"`
}

// HistoryResponse is returned by GET /api/v1/history.
type HistoryResponse struct {
	RunID   string                 `json:"run_id"`
	Samples []engine.HistorySample `json:"samples"`
}

// AlertsResponse is returned by GET /api/v1/alerts.
type AlertsResponse struct {
	RunID  string         `json:"run_id"`
	Alerts []engine.Alert `json:"alerts"`
}

type setRodsRequest struct {
	Position *float64 `json:"position" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"run_id": snap.RunID,
		"tick":   snap.Tick,
	})
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, stateView(s.ctrl.Snapshot()))
}

// stateView drops the history, which has its own endpoint.
func stateView(snap *engine.Snapshot) engine.Snapshot {
	v := *snap
	v.History = nil
	return v
}

func (s *Server) getHistory(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	samples := snap.History
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(samples) {
			samples = samples[len(samples)-n:]
		}
	}
	if samples == nil {
		samples = []engine.HistorySample{}
	}
	c.JSON(http.StatusOK, HistoryResponse{RunID: snap.RunID, Samples: samples})
}

func (s *Server) getAlerts(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	alerts := snap.Alerts
	if alerts == nil {
		alerts = []engine.Alert{}
	}
	c.JSON(http.StatusOK, AlertsResponse{RunID: snap.RunID, Alerts: alerts})
}

func (s *Server) setRods(c *gin.Context) {
	var req setRodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"position\": <number>}"})
		return
	}
	s.submit(c, engine.SetRods(*req.Position))
}

func (s *Server) scram(c *gin.Context) {
	s.submit(c, engine.Scram())
}

func (s *Server) togglePump(c *gin.Context) {
	pump, err := plant.ParsePump(c.Param("pump"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.submit(c, engine.TogglePump(pump))
}

func (s *Server) gridSync(c *gin.Context) {
	s.submit(c, engine.RequestGridSync())
}

func (s *Server) activateECCS(c *gin.Context) {
	s.submit(c, engine.ActivateECCS())
}

func (s *Server) ackAlerts(c *gin.Context) {
	s.submit(c, engine.AcknowledgeAlerts())
}

func (s *Server) submit(c *gin.Context, cmd engine.Command) {
	out, err := s.ctrl.Submit(c.Request.Context(), cmd)
	if err != nil {
		status := http.StatusServiceUnavailable
		if !errors.Is(err, engine.ErrStopped) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("command rejected", "command", cmd.String(), "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	snap := s.ctrl.Snapshot()
	status := http.StatusOK
	if out == engine.AwaitingConfirmation {
		status = http.StatusAccepted
	}
	c.JSON(status, CommandResponse{
		Command: cmd,
		Outcome: out,
		Mode:    snap.Mode,
		State:   snap.State,
	})
}

// advisorPrompt renders the prompt for the current state and asks the
// configured advisor. Without one, or when it fails, the response carries the
// prompt with the fallback text and fallback=true.
func (s *Server) advisorPrompt(c *gin.Context) {
	kind, err := advisor.ParseKind(c.DefaultQuery("kind", "diagnosis"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adv, err := advisor.Consult(c.Request.Context(), s.advisor, kind, s.ctrl.Snapshot().State)
	if err != nil && s.advisor != nil {
		s.logger.Warn("advisor failed", "kind", kind.String(), "error", err)
	}
	c.JSON(http.StatusOK, adv)
}
