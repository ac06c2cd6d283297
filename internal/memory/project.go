package memory

import (
	"context"
	"strings"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
)

const maxProjectNameLen = 32

// SanitizeProjectName normalizes a raw project name into a schema-safe
// identifier: lowercase, characters outside [a-z0-9] become underscores,
// runs collapse, edges are stripped, and the result is capped at 32 chars.
// The function is idempotent.
func SanitizeProjectName(raw string) (string, error) {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.Trim(b.String(), "_")
	if len(name) > maxProjectNameLen {
		name = strings.TrimRight(name[:maxProjectNameLen], "_")
	}
	if name == "" {
		return "", engerr.Validationf("invalid project name %q", raw).
			WithContext("reason", "invalid_project_name")
	}
	return name, nil
}

// ProjectInfo describes one project as seen by list_projects.
type ProjectInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	Current     bool   `json:"current"`
}

// ListProjects enumerates every project namespace, marking the one bound to
// the calling session.
func (e *Engine) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	names, err := e.schemas.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	displays, err := e.schemas.DisplayNames(ctx)
	if err != nil {
		return nil, err
	}

	current := ""
	if id := session.SessionID(ctx); id != "" {
		if project, ok := e.cache.Get(id); ok {
			current = project
		} else if sess, serr := e.sessions.Get(ctx, id); serr == nil && sess.HasProject() {
			current = sess.ProjectName
		}
	}

	out := make([]ProjectInfo, 0, len(names))
	for _, name := range names {
		out = append(out, ProjectInfo{
			Name:        name,
			DisplayName: displays[name],
			Current:     name == current,
		})
	}
	return out, nil
}

// CreateProject provisions a project namespace. Two display names whose
// sanitized forms collide are rejected; re-creating the same project is a
// no-op.
func (e *Engine) CreateProject(ctx context.Context, name string) (string, error) {
	project, err := SanitizeProjectName(name)
	if err != nil {
		return "", err
	}
	if e.schemas.Reserved(project) {
		return "", engerr.Validationf("project name %q is reserved", name)
	}
	if err := e.schemas.EnsureProject(ctx, project); err != nil {
		return "", err
	}
	if err := e.schemas.RegisterProject(ctx, project, name); err != nil {
		return "", err
	}
	return project, nil
}

// SelectProject binds the calling session to a project, creating the
// namespace if it does not exist yet. This and SwitchProject are the only
// writers of the session-to-project binding.
func (e *Engine) SelectProject(ctx context.Context, name string) (string, error) {
	id := session.SessionID(ctx)
	if id == "" {
		return "", engerr.Validation("no session resolved for this call")
	}

	project, err := SanitizeProjectName(name)
	if err != nil {
		return "", err
	}
	if e.schemas.Reserved(project) {
		return "", engerr.Validationf("project name %q is reserved", name)
	}
	if err := e.schemas.EnsureProject(ctx, project); err != nil {
		return "", err
	}
	if err := e.schemas.RegisterProject(ctx, project, name); err != nil {
		return "", err
	}

	if err := e.sessions.UpdateProject(ctx, id, project); err != nil {
		return "", err
	}
	e.cache.Set(id, project)
	return project, nil
}

// SwitchProject rebinds the session to another project. Same semantics as
// SelectProject; the separate tool name keeps the client-facing intent
// explicit.
func (e *Engine) SwitchProject(ctx context.Context, name string) (string, error) {
	return e.SelectProject(ctx, name)
}
