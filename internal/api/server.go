// Package api serves the HTTP health surface next to the MCP transport:
// liveness for process supervisors and readiness for orchestration.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dementia-mcp/internal/logging"
	"dementia-mcp/internal/memory"
)

// HealthServer exposes /healthz and /readyz.
type HealthServer struct {
	engine *memory.Engine
	server *http.Server
	logger logging.Logger
}

// NewHealthServer builds the server on the given listen address.
func NewHealthServer(addr string, engine *memory.Engine) *HealthServer {
	hs := &HealthServer{
		engine: engine,
		logger: logging.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Get("/healthz", hs.handleLiveness)
	r.Get("/readyz", hs.handleReadiness)

	hs.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return hs
}

// Start serves until the listener fails or Shutdown is called.
func (hs *HealthServer) Start() error {
	hs.logger.Info("health endpoints listening", "addr", hs.server.Addr)
	err := hs.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

// handleLiveness reports that the process is up. No dependencies are
// probed; a hung database must not get the process restarted.
func (hs *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

// handleReadiness probes the engine's dependencies.
func (hs *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status := hs.engine.Health(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
