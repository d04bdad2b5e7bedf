// Package httpapi exposes the email relay over HTTP with a uniform
// JSON response envelope.
package httpapi

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shineum/email-api-lite/internal/relay"
)

// shutdownTimeout is the maximum time to wait for in-flight requests
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8000").
	ListenAddr string

	// Dispatcher handles the send pipeline.
	Dispatcher *relay.Dispatcher

	// TLSConfig enables HTTPS when non-nil.
	TLSConfig *tls.Config

	// MaxRequestSize caps the request body in bytes.
	MaxRequestSize int64

	// AllowOrigins lists the origins permitted by CORS. "*" allows all.
	AllowOrigins []string
}

// Server is the HTTP front end of the relay.
type Server struct {
	config     ServerConfig
	dispatcher *relay.Dispatcher
}

// New creates a new Server with the given configuration.
func New(cfg ServerConfig) *Server {
	return &Server{
		config:     cfg,
		dispatcher: cfg.Dispatcher,
	}
}

// Routes builds the request router with the full middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	if len(s.config.AllowOrigins) > 0 {
		r.Use(corsMiddleware(s.config.AllowOrigins))
	}
	if s.config.MaxRequestSize > 0 {
		r.Use(bodyLimit(s.config.MaxRequestSize))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/send-email", s.handleSendEmail)

	return r
}

// ListenAndServe starts the HTTP server and blocks until the context is
// cancelled. On cancellation it stops accepting new connections and waits
// up to 30 seconds for in-flight requests to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Routes(),
		TLSConfig:         s.config.TLSConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening",
			"addr", s.config.ListenAddr,
			"provider", s.dispatcher.Provider(),
			"tls_enabled", s.config.TLSConfig != nil,
		)

		var err error
		if s.config.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown did not complete cleanly", "error", err)
		return srv.Close()
	}

	return nil
}
