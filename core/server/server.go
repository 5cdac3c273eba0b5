// Package server is the browser front end: an embedded single page UI, a JSON
// API that starts and inspects crew runs, a websocket log stream and the
// metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/adalundhe/crews/core/metrics"
	"github.com/adalundhe/crews/core/orchestrator"
	"github.com/adalundhe/crews/core/selection"
	"github.com/adalundhe/crews/core/session"
)

const (
	// SessionCookie carries the browser session id.
	SessionCookie = "crews_session"

	defaultReadTimeout     = 30 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// CredentialChecker reports whether a key is configured server side.
type CredentialChecker interface {
	Has(name string) bool
}

type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Sessions     *session.Manager

	// Models discovers local models for the model picker.
	Models selection.ModelLister

	Credentials CredentialChecker

	// MaxUploadBytes bounds the uploaded source file.
	MaxUploadBytes int64

	// Metrics is optional; nil disables /metrics.
	Metrics *metrics.Metrics

	// RunLogLevel is the lowest level copied into a run's log.
	RunLogLevel slog.Leveler

	Logger *slog.Logger
}

type Server struct {
	config  Config
	handler http.Handler
	logger  *slog.Logger
}

func New(config Config) (*Server, error) {
	if config.Orchestrator == nil {
		return nil, errors.New("server requires an orchestrator")
	}
	if config.Sessions == nil {
		return nil, errors.New("server requires a session manager")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RunLogLevel == nil {
		config.RunLogLevel = slog.LevelInfo
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = selection.DefaultMaxUploadBytes
	}

	s := &Server{config: config, logger: config.Logger}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/crews", s.handleCrews)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/providers/ollama/models", s.handleOllamaModels)

	mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/artifact", s.handleArtifact)
	mux.HandleFunc("GET /api/runs/{id}/artifact.html", s.handleArtifactHTML)

	mux.HandleFunc("GET /ws/runs/{id}", s.handleRunStream)

	if m := s.config.Metrics; m != nil {
		mux.Handle("GET /metrics", m.Handler())
		return m.Middleware(mux)
	}
	return mux
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type ListenConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then drains connections and
// cancels in-flight runs.
func (s *Server) ListenAndServe(ctx context.Context, cfg ListenConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg ListenConfig) error {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := s.config.Sessions.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("runs did not finish before shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
