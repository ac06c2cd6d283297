package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// ExportPayload is the portable serialization of one project.
type ExportPayload struct {
	Project       string            `json:"project"`
	DisplayName   string            `json:"display_name,omitempty"`
	ExportedAt    time.Time         `json:"exported_at"`
	Contexts      []ExportedContext `json:"contexts"`
	MemoryEntries []ExportedEntry   `json:"memory_entries,omitempty"`
	Sessions      []ExportedSession `json:"sessions,omitempty"`
}

// ExportedContext carries one context lock in full.
type ExportedContext struct {
	SessionID   string                 `json:"session_id"`
	Label       string                 `json:"label"`
	Version     string                 `json:"version"`
	Content     string                 `json:"content"`
	ContentHash string                 `json:"content_hash"`
	Preview     string                 `json:"preview"`
	KeyConcepts []string               `json:"key_concepts"`
	Priority    string                 `json:"priority"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	LockedAt    time.Time              `json:"locked_at"`
	AccessCount int64                  `json:"access_count"`
	Embedding   []float32              `json:"embedding,omitempty"`
}

// ExportedEntry carries one memory entry.
type ExportedEntry struct {
	SessionID string                 `json:"session_id"`
	Category  string                 `json:"category"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ExportedSession carries a session bound to the exported project.
type ExportedSession struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// ExportProject serializes a project's contexts, memory entries and bound
// sessions into a portable payload.
func (e *Engine) ExportProject(ctx context.Context, project string) (*ExportPayload, error) {
	resolved, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	payload := &ExportPayload{Project: resolved, ExportedAt: time.Now().UTC()}

	displays, err := e.schemas.DisplayNames(ctx)
	if err == nil {
		payload.DisplayName = displays[resolved]
	}

	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 ORDER BY label, version_major, version_minor`)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			lock := scanLock(row)
			payload.Contexts = append(payload.Contexts, ExportedContext{
				SessionID:   lock.SessionID,
				Label:       lock.Label,
				Version:     lock.Version.String(),
				Content:     lock.Content,
				ContentHash: lock.ContentHash,
				Preview:     lock.Preview,
				KeyConcepts: lock.KeyConcepts,
				Priority:    lock.Priority,
				Metadata:    lock.Metadata,
				LockedAt:    lock.LockedAt,
				AccessCount: lock.AccessCount,
				Embedding:   lock.Embedding,
			})
		}

		entries, qerr := c.Query(ctx,
			"SELECT session_id, category, content, metadata, created_at FROM memory_entries ORDER BY created_at")
		if qerr != nil {
			return qerr
		}
		for _, row := range entries {
			entry := ExportedEntry{}
			entry.SessionID, _ = row["session_id"].(string)
			entry.Category, _ = row["category"].(string)
			entry.Content, _ = row["content"].(string)
			if raw, ok := row["metadata"].(string); ok && raw != "" {
				_ = json.Unmarshal([]byte(raw), &entry.Metadata)
			}
			if ts, ok := row["created_at"].(time.Time); ok {
				entry.CreatedAt = ts
			}
			payload.MemoryEntries = append(payload.MemoryEntries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = e.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			"SELECT id, created_at, last_active FROM sessions WHERE project_name = ?", resolved)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			sess := ExportedSession{}
			sess.ID, _ = row["id"].(string)
			if ts, ok := row["created_at"].(time.Time); ok {
				sess.CreatedAt = ts
			}
			if ts, ok := row["last_active"].(time.Time); ok {
				sess.LastActive = ts
			}
			payload.Sessions = append(payload.Sessions, sess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// ImportResult summarizes an import.
type ImportResult struct {
	Project         string `json:"project"`
	Contexts        int    `json:"contexts"`
	MemoryEntries   int    `json:"memory_entries"`
	SessionsAdopted int    `json:"sessions_adopted"`
}

// ImportProject inserts an exported payload under a target project. The
// (label, version, content_hash) multiset of the source is preserved; a
// version already present in the target fails the import.
func (e *Engine) ImportProject(ctx context.Context, target string, payload *ExportPayload) (*ImportResult, error) {
	if payload == nil || len(payload.Contexts) == 0 {
		return nil, engerr.Validation("import payload has no contexts")
	}

	project, err := SanitizeProjectName(target)
	if err != nil {
		return nil, err
	}
	if err := e.schemas.EnsureProject(ctx, project); err != nil {
		return nil, err
	}
	displayName := payload.DisplayName
	if displayName == "" {
		displayName = target
	}
	if err := e.schemas.RegisterProject(ctx, project, displayName); err != nil {
		return nil, err
	}

	result := &ImportResult{Project: project}
	schema := e.schemas.SchemaFor(project)

	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		if _, berr := c.Execute(ctx, "BEGIN"); berr != nil {
			return berr
		}
		for _, lock := range payload.Contexts {
			v, verr := ParseVersion(lock.Version)
			if verr != nil {
				_, _ = c.Execute(ctx, "ROLLBACK")
				return verr
			}
			metadata, merr := json.Marshal(lock.Metadata)
			if merr != nil {
				metadata = []byte("{}")
			}
			if _, ierr := c.Execute(ctx,
				`INSERT INTO context_locks
					(id, session_id, label, version_major, version_minor, content,
					 content_hash, preview, key_concepts, priority, metadata,
					 locked_at, access_count, embedding)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), lock.SessionID, lock.Label, v.Major, v.Minor,
				lock.Content, lock.ContentHash, lock.Preview, pq.Array(lock.KeyConcepts),
				lock.Priority, string(metadata), lock.LockedAt, lock.AccessCount,
				pq.Array(floats64(lock.Embedding))); ierr != nil {
				_, _ = c.Execute(ctx, "ROLLBACK")
				return ierr
			}
			result.Contexts++
		}
		for _, entry := range payload.MemoryEntries {
			metadata, merr := json.Marshal(entry.Metadata)
			if merr != nil {
				metadata = []byte("{}")
			}
			if _, ierr := c.Execute(ctx,
				"INSERT INTO memory_entries (id, session_id, category, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				uuid.New().String(), entry.SessionID, entry.Category, entry.Content,
				string(metadata), entry.CreatedAt); ierr != nil {
				_, _ = c.Execute(ctx, "ROLLBACK")
				return ierr
			}
			result.MemoryEntries++
		}
		_, cerr := c.Execute(ctx, "COMMIT")
		return cerr
	})
	if err != nil {
		return nil, err
	}

	// Session rows are global; adopt the exported ones under the target
	// project without clobbering live sessions of the same id.
	err = e.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		for _, sess := range payload.Sessions {
			n, ierr := c.Execute(ctx,
				`INSERT INTO sessions (id, project_name, created_at, last_active)
				 VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
				sess.ID, project, sess.CreatedAt, sess.LastActive)
			if ierr != nil {
				return ierr
			}
			result.SessionsAdopted += int(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
