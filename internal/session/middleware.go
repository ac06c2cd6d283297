package session

import (
	"context"

	"github.com/google/uuid"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/logging"
)

// ToolHandler is the transport-agnostic tool invocation signature the
// middleware wraps.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Whitelist names the tools callable before a project is selected. MCP
// clients cannot atomically create a session and choose a project; the
// pending sentinel makes the two-step selection explicit.
var Whitelist = map[string]bool{
	"list_projects":              true,
	"create_project":             true,
	"select_project_for_session": true,
	"switch_project":             true,
	"memory_health":              true,
}

// Middleware intercepts every tool invocation: it resolves or creates a
// stable session, gates non-whitelisted tools on project selection,
// publishes the session id into the request context and touches the
// session after dispatch.
type Middleware struct {
	store  Store
	cache  *ProjectCache
	logger logging.Logger
}

// NewMiddleware creates the session middleware.
func NewMiddleware(store Store, cache *ProjectCache) *Middleware {
	return &Middleware{
		store:  store,
		cache:  cache,
		logger: logging.WithComponent("session"),
	}
}

// Wrap returns the handler with session resolution applied for the named
// tool.
func (m *Middleware) Wrap(toolName string, next ToolHandler) ToolHandler {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		// Identify: transport metadata first, request params next,
		// synthesized last.
		id := SessionID(ctx)
		if id == "" {
			if fromParams, ok := params["session_id"].(string); ok && fromParams != "" {
				id = fromParams
			} else {
				id = uuid.New().String()
				m.logger.DebugContext(ctx, "synthesized session id", "session_id", id)
			}
		}

		// Resolve: load or create the session row.
		sess, err := m.store.Get(ctx, id)
		if err != nil {
			if !engerr.IsKind(err, engerr.KindNotFound) {
				return nil, err
			}
			sess, err = m.store.Create(ctx, id, PendingProject)
			if err != nil {
				return nil, err
			}
		}

		// Reconcile the project cache from the authoritative row.
		if _, ok := m.cache.Get(id); !ok && sess.HasProject() {
			m.cache.Set(id, sess.ProjectName)
		}

		// Gate: non-whitelisted tools require a selected project.
		if !Whitelist[toolName] && !sess.HasProject() {
			return nil, engerr.ProjectNotSelected().WithContext("tool", toolName)
		}

		// Publish, dispatch, touch.
		ctx = WithSessionID(ctx, id)
		result, err := next(ctx, params)

		if terr := m.store.Touch(ctx, id); terr != nil {
			m.logger.WarnContext(ctx, "session touch failed",
				"session_id", id, "error", terr)
		}
		return result, err
	}
}
