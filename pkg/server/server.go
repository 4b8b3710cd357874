package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/dispatch"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/journal"
	"github.com/oppilot/oppilot/pkg/override"
)

// Dispatcher is the engine surface the server needs. *dispatch.Engine
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *dispatch.Request) (*dispatch.Decision, error)
	OverrideStatus() (override.Status, bool)
	HealthSnapshot() map[string]health.Record
	Classify(text string) classify.Category
}

// StatsSource reports journal aggregates for the status endpoint.
type StatsSource interface {
	Stats(ctx context.Context) (journal.Stats, error)
}

// Options carries the server's optional collaborators.
type Options struct {
	// Journal feeds the /v1/status aggregates. Nil omits them.
	Journal StatsSource

	// Metrics is mounted at MetricsPath when non-nil.
	Metrics http.Handler

	// MetricsPath is the metrics mount point. Default: /metrics.
	MetricsPath string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP front end for the dispatch engine.
type Server struct {
	cfg    config.ServerConfig
	engine Dispatcher
	opts   Options
	logger *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	running      bool
}

// New creates a server. It does not start listening.
func New(cfg config.ServerConfig, engine Dispatcher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		cfg:    cfg,
		engine: engine,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Start listens on the configured address and blocks until the context is
// cancelled, a shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting dispatch server", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		s.logger.Info("dispatch server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start has been called and not yet shut down.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/status", s.handleStatus)

	if s.opts.Metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}

	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(s.logger, handler)
	handler = recoveryMiddleware(s.logger, handler)
	return handler
}
