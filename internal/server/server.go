// Package server exposes the simulation over HTTP/JSON and a WebSocket
// snapshot stream.
//
// Reads come from the engine's published snapshot and never block the
// simulation loop. Commands go through Engine.Submit and are answered with
// their Outcome once applied.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tanudai/Nuclear-SCADA/internal/advisor"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
)

// Controller is the engine surface the server needs. *engine.Engine
// satisfies it.
type Controller interface {
	Snapshot() *engine.Snapshot
	Submit(ctx context.Context, cmd engine.Command) (engine.Outcome, error)
	Subscribe() (<-chan *engine.Snapshot, func())
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address for Run. Default ":8080".
	Addr string
	// Advisor answers advisor prompt requests. Nil returns prompts with the
	// fallback text.
	Advisor advisor.Advisor
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// ShutdownTimeout bounds graceful shutdown in Run. Default 5s.
	ShutdownTimeout time.Duration
}

// Server is the HTTP surface over a Controller.
type Server struct {
	ctrl    Controller
	advisor advisor.Advisor
	logger  *slog.Logger
	addr    string
	grace   time.Duration
	router  *gin.Engine
}

// New builds the router. Call gin.SetMode before New to change gin's mode.
func New(ctrl Controller, opts Options) *Server {
	s := &Server{
		ctrl:    ctrl,
		advisor: opts.Advisor,
		logger:  opts.Logger,
		addr:    opts.Addr,
		grace:   opts.ShutdownTimeout,
		router:  gin.New(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	if s.grace <= 0 {
		s.grace = 5 * time.Second
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/state", s.getState)
		v1.GET("/history", s.getHistory)
		v1.GET("/alerts", s.getAlerts)
		v1.GET("/stream", s.stream)

		cmds := v1.Group("/commands")
		cmds.POST("/rods", s.setRods)
		cmds.POST("/scram", s.scram)
		cmds.POST("/pumps/:pump/toggle", s.togglePump)
		cmds.POST("/grid/sync", s.gridSync)
		cmds.POST("/eccs/activate", s.activateECCS)

		v1.POST("/alerts/ack", s.ackAlerts)
		v1.GET("/advisor/prompt", s.advisorPrompt)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
