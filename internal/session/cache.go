package session

import "sync"

// ProjectCache is the in-memory session-id to project-name hint. The
// database session row is the source of truth; the cache is reconciled
// from it on miss and written only by project selection and switching.
type ProjectCache struct {
	mu       sync.RWMutex
	projects map[string]string
}

// NewProjectCache creates an empty cache.
func NewProjectCache() *ProjectCache {
	return &ProjectCache{projects: make(map[string]string)}
}

// Get returns the cached project for a session, if any.
func (pc *ProjectCache) Get(sessionID string) (string, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	project, ok := pc.projects[sessionID]
	return project, ok
}

// Set records the project binding for a session.
func (pc *ProjectCache) Set(sessionID, project string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.projects[sessionID] = project
}

// Invalidate drops the hint for a session.
func (pc *ProjectCache) Invalidate(sessionID string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.projects, sessionID)
}
