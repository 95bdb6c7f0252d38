// Package server dispatches HTTP and WebSocket traffic to file-convention
// routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redraskal/gateway/internal/config"
	gwerrors "github.com/redraskal/gateway/internal/errors"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/monitoring"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/internal/version"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server owns the listeners for one gateway process.
type Server struct {
	config     *config.Config
	table      *registry.Table
	logger     logging.Logger
	metrics    *monitoring.Metrics
	runtime    *Runtime
	dispatcher *Dispatcher
}

// New builds a server for table. metrics may be nil.
func New(cfg *config.Config, table *registry.Table, logger logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	rt := NewRuntime(cfg.Env, cfg.Reloads, metrics)
	metrics.SetRoutesLoaded(table.Len())

	return &Server{
		config:  cfg,
		table:   table,
		logger:  logger.WithComponent("server"),
		metrics: metrics,
		runtime: rt,
		dispatcher: NewDispatcher(Options{
			Table:          table,
			Runtime:        rt,
			Public:         os.DirFS(cfg.PublicDir),
			CacheTTL:       cfg.CacheTTL,
			JSONErrors:     cfg.JSONErrors,
			MaxBodySize:    cfg.MaxBodySize,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
		}),
	}
}

// Handler returns the request dispatcher.
func (s *Server) Handler() http.Handler { return s.dispatcher }

// Runtime returns the process runtime.
func (s *Server) Runtime() *Runtime { return s.runtime }

// Run listens on the configured address and serves until ctx is done. In dev
// it returns ErrRestartRequested when the pages directory needs a restart.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return gwerrors.NewNetworkError("ERR_LISTEN", "failed to listen on "+s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Request contexts outlive Shutdown for hijacked sockets, so they get
	// their own cancel.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.dispatcher,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          s.errorLog(),
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(gctx, version.Banner(string(s.runtime.Env())), "routes", s.table.Len())
		s.logger.Info(gctx, fmt.Sprintf("Server running at http://%s", ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return gwerrors.NewNetworkError("ERR_SERVE", "server failed", err)
		}
		return nil
	})

	var metricsSrv *http.Server
	if s.config.MetricsAddr != "" && s.metrics != nil {
		metricsSrv = &http.Server{
			Addr:              s.config.MetricsAddr,
			Handler:           s.metrics.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		g.Go(func() error {
			s.logger.Info(gctx, "Metrics listening", "addr", s.config.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return gwerrors.NewNetworkError("ERR_METRICS", "metrics server failed", err)
			}
			return nil
		})
	}

	if s.runtime.IsDev() {
		loop := &ReloadLoop{
			Runtime:   s.runtime,
			Table:     s.table,
			PagesDir:  s.config.PagesDir,
			PublicDir: s.config.PublicDir,
			Logger:    s.logger,
		}
		g.Go(func() error { return loop.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = s.runtime.Hub().Shutdown(shutdownCtx)
		err := srv.Shutdown(shutdownCtx)
		cancelBase()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return err
	})

	return g.Wait()
}

func (s *Server) errorLog() *log.Logger {
	if sl, ok := s.logger.(interface {
		StdLogger(logging.LogLevel) *log.Logger
	}); ok {
		return sl.StdLogger(logging.LevelWarn)
	}
	return nil
}
