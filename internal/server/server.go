// Package server runs the filecat HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"filecat/internal/config"
)

// Server wraps http.Server with shutdown hooks.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout config.Duration

	mu    sync.Mutex
	hooks []func(context.Context) error
}

// New creates a server for handler. Nothing listens until Run.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout.Duration,
			WriteTimeout: cfg.WriteTimeout.Duration,
			IdleTimeout:  cfg.IdleTimeout.Duration,
		},
		logger:          logger.With(slog.String("component", "server")),
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// OnStop registers fn to run as soon as shutdown begins, while in-flight
// requests are still being drained. Long-lived handlers such as event streams
// use it to end their responses so draining can finish.
func (s *Server) OnStop(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

// OnShutdown registers fn to run after every request has drained. Hooks run
// in registration order with their own shutdown timeout and all run even when
// one fails.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down within
// the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	var errs []error
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), s.shutdownTimeout.Duration)
	if err := s.httpServer.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("graceful shutdown: %w", err))
	}
	cancelDrain()

	hookCtx, cancelHooks := context.WithTimeout(context.Background(), s.shutdownTimeout.Duration)
	defer cancelHooks()

	s.mu.Lock()
	hooks := append([]func(context.Context) error(nil), s.hooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		if err := hook(hookCtx); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("HTTP server stopped")
	return errors.Join(errs...)
}
