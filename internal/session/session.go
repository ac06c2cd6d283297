// Package session provides MCP session lifecycle: the durable store, the
// request middleware that resolves and gates sessions, the in-memory
// project cache and the background cleanup task.
package session

import (
	"context"
	"time"
)

// PendingProject is the sentinel project binding meaning "no project
// selected yet". Non-whitelisted tools are gated until the binding changes.
const PendingProject = "__PENDING__"

// Summary is the structured session snapshot used by handover.
type Summary struct {
	WorkDone         []string               `json:"work_done"`
	ToolsUsed        []string               `json:"tools_used"`
	NextSteps        []string               `json:"next_steps"`
	ImportantContext map[string]interface{} `json:"important_context"`
}

// Session is one MCP conversation thread. The id is stable across
// reconnects of the same logical session.
type Session struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"project_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	Summary     *Summary  `json:"session_summary,omitempty"`
}

// HasProject reports whether the session is bound to a real project.
func (s *Session) HasProject() bool {
	return s.ProjectName != "" && s.ProjectName != PendingProject
}

// Store is the durable session store. Create is idempotent on id; Touch is
// monotonic on last_active.
type Store interface {
	Create(ctx context.Context, id, projectName string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	UpdateProject(ctx context.Context, id, projectName string) error
	Touch(ctx context.Context, id string) error
	UpdateSummary(ctx context.Context, id string, summary *Summary) error
	CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type contextKey string

const sessionIDKey contextKey = "dementia_session_id"

// WithSessionID stores the resolved session id in the request context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID reads the resolved session id from the request context.
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
