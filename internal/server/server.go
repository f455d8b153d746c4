// Package server exposes the classifier and the mail sources over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/unclutter/internal/auth"
	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/mail"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/service"
)

const shutdownTimeout = 10 * time.Second

// SourceFactory builds the message source for one authenticated session. It returns an
// error wrapping common.ErrNotAuthenticated when the session is unknown.
type SourceFactory func(ctx context.Context, sessionID string) (service.MessageSource, error)

// GmailSources returns a SourceFactory that reads Gmail with the session's stored token.
func GmailSources(manager *auth.Manager, opts mail.GmailOptions) SourceFactory {
	return func(ctx context.Context, sessionID string) (service.MessageSource, error) {
		ts, err := manager.TokenSource(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return mail.NewGmailSource(ctx, ts, opts)
	}
}

// Options configures a Server.
type Options struct {
	Auth       *auth.Manager
	Store      service.TokenStore
	Classifier *classification.Classifier
	Metrics    *metrics.Recorder
	Sources    SourceFactory
	Addr       string
	// FrontendURL is the browser origin allowed by CORS and the target of login redirects.
	FrontendURL   string
	PurgeInterval time.Duration
}

// Server is the HTTP API.
type Server struct {
	auth          *auth.Manager
	store         service.TokenStore
	classifier    *classification.Classifier
	metrics       *metrics.Recorder
	sources       SourceFactory
	router        chi.Router
	addr          string
	frontendURL   string
	purgeInterval time.Duration
}

// New wires a Server. Metrics may be nil, in which case /metrics is not mounted.
func New(opts Options) *Server {
	s := &Server{
		auth:          opts.Auth,
		store:         opts.Store,
		classifier:    opts.Classifier,
		metrics:       opts.Metrics,
		sources:       opts.Sources,
		addr:          opts.Addr,
		frontendURL:   opts.FrontendURL,
		purgeInterval: opts.PurgeInterval,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors(s.frontendURL))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", s.handleLogin)
			r.Get("/google/callback", s.handleCallback)
			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleLogout)
		})
		r.Get("/emails", s.handleListEmails)
		r.Get("/emails/{id}", s.handleGetEmail)
		r.Post("/classify", s.handleClassify)
		r.Get("/rules", s.handleRules)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully. Expired credentials are
// purged in the background while the server runs.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go s.purgeLoop(purgeCtx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", listener.Addr().String())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) purgeLoop(ctx context.Context) {
	if s.purgeInterval <= 0 || s.store == nil {
		return
	}

	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Server) purgeOnce(ctx context.Context) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		common.LogError(err, "Failed to purge expired credentials", nil)
		return
	}
	if n > 0 {
		slog.Info("Purged expired credentials", "count", n)
	}
}
