package memory

import (
	"context"
	"time"
)

// HealthStatus is the memory_health report. Collaborator degradation is
// reported, never fatal; only database unavailability marks the engine
// unhealthy.
type HealthStatus struct {
	Healthy    bool      `json:"healthy"`
	Database   string    `json:"database"`
	Embeddings string    `json:"embeddings"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Health probes the database and the embedding collaborator.
func (e *Engine) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Healthy: true, CheckedAt: time.Now().UTC()}

	if err := e.adapter.Ping(ctx); err != nil {
		status.Healthy = false
		status.Database = err.Error()
	} else {
		status.Database = "ok"
	}

	switch {
	case e.embedder == nil:
		status.Embeddings = "disabled"
	default:
		if err := e.embedder.HealthCheck(ctx); err != nil {
			status.Embeddings = "degraded: " + err.Error()
		} else {
			status.Embeddings = "ok"
		}
	}
	return status
}
