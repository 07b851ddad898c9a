// Package server wires the HTTP routes of the import API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/handlers"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

// Options holds the collaborators of the server.
type Options struct {
	Importer handlers.Importer
	Accounts handlers.AccountCreator
	Auth     middleware.Authenticator
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server represents the import API server
type Server struct {
	mux *http.ServeMux
	log zerolog.Logger
}

// New creates a new server instance
func New(opts Options) (*Server, error) {
	if opts.Importer == nil {
		return nil, fmt.Errorf("importer cannot be nil")
	}
	if opts.Accounts == nil {
		return nil, fmt.Errorf("account creator cannot be nil")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}

	s := &Server{
		mux: http.NewServeMux(),
		log: opts.Logger,
	}
	s.setupRoutes(opts)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(opts Options) {
	s.mux.HandleFunc("GET /health", handlers.HealthCheck)
	if opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	importHandler := handlers.NewImportHandler(opts.Importer)
	accountHandler := handlers.NewAccountHandler(opts.Accounts)

	s.mux.Handle("POST /api/import", opts.Auth.RequireAuth(http.HandlerFunc(importHandler.Import)))
	s.mux.Handle("POST /api/accounts", opts.Auth.RequireAuth(http.HandlerFunc(accountHandler.CreateAccount)))
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return middleware.Logging(s.log)(middleware.CORS(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
