// Package health provides the liveness and readiness endpoints of the
// civicbot daemon.
//
// /healthz answers 200 as long as the process is serving. /readyz answers
// 200 once the daemon has marked itself ready and every registered
// component reports up, and lists the component states either way.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Server is a lightweight HTTP server that exposes /healthz and /readyz.
type Server struct {
	port    int
	version string
	ready   atomic.Bool
	server  *http.Server

	mu         sync.RWMutex
	components map[string]string
}

// Response is the body of both endpoints.
type Response struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// New creates a new health check server.
func New(port int, version string) *Server {
	return &Server{port: port, version: version, components: map[string]string{}}
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// SetComponent records the state of a named component, e.g. "http" or
// "monitor". Any state other than "up" makes /readyz fail.
func (s *Server) SetComponent(name, state string) {
	s.mu.Lock()
	s.components[name] = state
	s.mu.Unlock()
}

func (s *Server) snapshot() (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up := true
	for _, state := range s.components {
		if state != "up" {
			up = false
		}
	}
	return maps.Clone(s.components), up
}

// Handler returns the health endpoints as an http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Status: "ok", Version: s.version})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		components, up := s.snapshot()
		if !s.ready.Load() || !up {
			writeJSON(w, http.StatusServiceUnavailable, Response{Status: "not_ready", Version: s.version, Components: components})
			return
		}
		writeJSON(w, http.StatusOK, Response{Status: "ok", Version: s.version, Components: components})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe starts the health check HTTP server.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
