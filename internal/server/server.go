// Package server exposes the generation engine over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/epmforge/internal/server/notifier"
	"github.com/leapstack-labs/epmforge/internal/suggest"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// previewLimit caps how many rows the synchronous generate endpoint
// returns in its response body.
const previewLimit = 100

// Server is the HTTP API server.
type Server struct {
	store       core.Store
	suggester   *suggest.Client
	port        int
	environment string
	logger      *slog.Logger
	notifier    *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Store       core.Store
	Suggester   *suggest.Client
	Port        int
	Environment string
	Logger      *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		store:       cfg.Store,
		suggester:   cfg.Suggester,
		port:        cfg.Port,
		environment: cfg.Environment,
		logger:      logger,
		notifier:    notifier.New(),
	}
}

// Notifier returns the server's notifier for status updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleInfo)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/stream", s.handleGenerateStream)
		r.Post("/suggest", s.handleSuggest)
		r.Post("/upload", s.handleUpload)
		r.Get("/runs", s.handleListRuns)
	})
	r.Get("/events/status", s.handleStatusEvents)
	return r
}
