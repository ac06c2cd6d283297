// Package memory implements the memory core: project resolution, context
// lock versioning, recall, search, archival and handover packaging. Every
// operation runs inside the resolved project's schema; session rows live in
// the control schema and are reached through the session store.
package memory

import (
	"context"

	"dementia-mcp/internal/ai"
	"dementia-mcp/internal/config"
	"dementia-mcp/internal/embeddings"
	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/logging"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// Priority levels for locked contexts.
const (
	PriorityAlwaysCheck = "always_check"
	PriorityImportant   = "important"
	PriorityReference   = "reference"
)

// Engine is the memory core. The embedder and completer collaborators are
// optional; a nil collaborator degrades the corresponding path instead of
// gating it.
type Engine struct {
	adapter  *storage.Adapter
	schemas  *storage.Schemas
	sessions session.Store
	cache    *session.ProjectCache
	embedder embeddings.Service
	llm      ai.Completer
	cfg      *config.Config
	logger   logging.Logger
}

// NewEngine creates the memory core.
func NewEngine(
	adapter *storage.Adapter,
	schemas *storage.Schemas,
	sessions session.Store,
	cache *session.ProjectCache,
	embedder embeddings.Service,
	llm ai.Completer,
	cfg *config.Config,
) *Engine {
	return &Engine{
		adapter:  adapter,
		schemas:  schemas,
		sessions: sessions,
		cache:    cache,
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		logger:   logging.WithComponent("memory"),
	}
}

// resolveProject applies the project resolution order: explicit argument
// first, then the current session's binding, then failure. The winner is
// sanitized before use.
func (e *Engine) resolveProject(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return SanitizeProjectName(explicit)
	}

	id := session.SessionID(ctx)
	if id == "" {
		return "", engerr.ProjectNotSelected()
	}

	if project, ok := e.cache.Get(id); ok {
		return SanitizeProjectName(project)
	}

	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		if engerr.IsKind(err, engerr.KindNotFound) {
			return "", engerr.ProjectNotSelected()
		}
		return "", err
	}
	if !sess.HasProject() {
		return "", engerr.ProjectNotSelected()
	}

	e.cache.Set(id, sess.ProjectName)
	return SanitizeProjectName(sess.ProjectName)
}

// SchemaName derives the namespace for a sanitized project name.
func (e *Engine) SchemaName(project string) string {
	return e.schemas.SchemaFor(project)
}

// schemaFor is resolveProject plus namespace derivation. Names colliding
// with the control schema are rejected here so no operation can reach it.
func (e *Engine) schemaFor(ctx context.Context, explicit string) (project, schema string, err error) {
	project, err = e.resolveProject(ctx, explicit)
	if err != nil {
		return "", "", err
	}
	if e.schemas.Reserved(project) {
		return "", "", engerr.Validationf("project name %q is reserved", project)
	}
	return project, e.schemas.SchemaFor(project), nil
}
