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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tanudai/Nuclear-SCADA/internal/advisor"
	"github.com/tanudai/Nuclear-SCADA/internal/config"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/server"
	"github.com/tanudai/Nuclear-SCADA/internal/store"
	"github.com/tanudai/Nuclear-SCADA/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string

	// Ready, if set, is called with the engine once every component is
	// wired and before the loop starts (for testing).
	Ready func(*engine.Engine)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator behind the HTTP and WebSocket API",
		Long: `Start the real-time engine loop and serve the operator API.

Sinks are enabled by the config file: journal.path writes the SQLite
journal, nats.url publishes alerts and samples, influx.url writes trend
points and advisor.url forwards advisor prompts to an assistant gateway. A failing sink is logged and never stops the simulation.

Examples:
  scada serve
  scada serve --addr 127.0.0.1:9090 --db ./scada.db
  scada serve --config plant.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides journal.path)")

	return cmd
}

// sinks are the optional observers wired from config, with their cleanup.
type sinks struct {
	observers []engine.Observer
	closers   []func()
}

func (s *sinks) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openSinks(cfg config.Config, st *store.Store, logger *slog.Logger) (*sinks, error) {
	s := &sinks{}
	if st != nil {
		s.observers = append(s.observers, store.NewJournal(st))
	}
	if cfg.NATS.URL != "" {
		nc, err := telemetry.DialNATS(telemetry.NATSOptions{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			s.close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		logger.Info("nats sink enabled", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
		s.observers = append(s.observers, nc)
		s.closers = append(s.closers, func() {
			if err := nc.Close(); err != nil {
				logger.Error("error draining nats", "error", err)
			}
		})
	}
	if cfg.Influx.URL != "" {
		ix := telemetry.DialInflux(telemetry.InfluxOptions{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		logger.Info("influx sink enabled", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
		s.observers = append(s.observers, ix)
		s.closers = append(s.closers, ix.Close)
	}
	return s, nil
}

// newAdvisor returns the configured assistant gateway, or nil so the advisor
// endpoint serves the fallback text.
func newAdvisor(cfg config.Config, logger *slog.Logger) advisor.Advisor {
	if cfg.Advisor.URL == "" {
		return nil
	}
	logger.Info("advisor enabled", "url", cfg.Advisor.URL)
	return advisor.NewHTTP(advisor.HTTPOptions{
		URL:     cfg.Advisor.URL,
		Token:   cfg.Advisor.Token,
		Timeout: time.Duration(cfg.Advisor.Timeout),
	})
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger()

	addr := opts.Addr
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
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

	sk, err := openSinks(cfg, st, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sinks", err)
	}
	// Sinks close after the engine has flushed its outbox.
	defer sk.close()

	engOpts := []engine.Option{engine.WithLogger(logger)}
	for _, o := range sk.observers {
		engOpts = append(engOpts, engine.WithObserver(o))
	}
	engineCfg := cfg.Engine()
	eng := engine.New(engineCfg, engOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if st != nil {
		if err := st.BeginRun(ctx, store.Run{ID: eng.RunID(), StartedAt: time.Now().UTC(), Config: engineCfg}); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(eng, server.Options{
		Addr:    addr,
		Advisor: newAdvisor(cfg, logger),
		Logger:  logger,
	})

	if opts.Ready != nil {
		opts.Ready(eng)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := eng.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	// Stop serving once the engine is gone (Stop or cancellation).
	g.Go(func() error {
		select {
		case <-eng.Done():
			stop()
		case <-gctx.Done():
		}
		return nil
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Engine %s serving on %s. Press Ctrl-C to stop.\n", eng.RunID(), addr)
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "serve failed", err)
	}
	logger.Info("serve stopped gracefully")
	return nil
}
