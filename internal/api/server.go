package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chadmayfield/weatherapp/internal/store"
)

// Server serves the weather page and the JSON API.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	logger     *slog.Logger
}

// NewServer creates a new server with all routes registered.
func NewServer(l WeatherLookup, s store.Store, defaultCity string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		Lookup:      l,
		Store:       s,
		Logger:      logger,
		DefaultCity: defaultCity,
		StartTime:   time.Now(),
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/health", h.Health)
	api.HandleFunc("GET /api/v1/records", h.ListRecords)
	api.HandleFunc("GET /api/v1/records/{id}", h.GetRecord)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Weather)
	mux.HandleFunc("POST /{$}", h.Weather)
	mux.Handle("/api/", ContentType(api))

	// Apply middleware (outermost runs first).
	var handler http.Handler = mux
	handler = SecurityHeaders(handler)
	handler = CORS("")(handler) // Empty string disables CORS headers.
	handler = Logger(logger)(handler)
	handler = RequestID(handler)
	handler = Recovery(logger)(handler)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h, logger: logger}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	s.logger.Info("http server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetStorageInfo sets storage driver and path for the health endpoint.
func (s *Server) SetStorageInfo(driver, path string) {
	s.handlers.StorageDriver = driver
	s.handlers.StoragePath = path
}
