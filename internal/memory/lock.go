package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/retry"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// LockRequest carries the arguments of a lock operation.
type LockRequest struct {
	Content     string
	Topic       string
	Tags        []string
	Priority    string
	VersionBase string
	Project     string
}

// LockResult is the outcome of a successful lock.
type LockResult struct {
	Label        string `json:"label"`
	Version      string `json:"version"`
	Hash         string `json:"hash"`
	Preview      string `json:"preview"`
	Priority     string `json:"priority"`
	Embedded     bool   `json:"embedded"`
	BranchedFrom string `json:"branched_from,omitempty"`
}

// LockContext creates a new immutable context version. Concurrent locks on
// the same label are serialized by the (label, version) uniqueness
// constraint; losers recompute the next minor and retry within a small
// budget.
func (e *Engine) LockContext(ctx context.Context, req LockRequest) (*LockResult, error) {
	prepared, err := e.prepareLock(ctx, req)
	if err != nil {
		return nil, err
	}

	project, schema, err := e.schemaFor(ctx, req.Project)
	if err != nil {
		return nil, err
	}
	if err := e.schemas.EnsureProject(ctx, project); err != nil {
		return nil, err
	}

	var result *LockResult
	err = retry.Retry(ctx, e.lockRetryConfig(), func(ctx context.Context) error {
		return e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
			var lerr error
			result, lerr = e.lockOne(ctx, c, prepared)
			return lerr
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BatchLockContexts locks several contexts atomically: either every request
// lands or none does. The whole batch retries on a version collision.
func (e *Engine) BatchLockContexts(ctx context.Context, reqs []LockRequest, project string) ([]*LockResult, error) {
	if len(reqs) == 0 {
		return nil, engerr.Validation("batch must contain at least one request")
	}

	prepared := make([]*preparedLock, len(reqs))
	for i, req := range reqs {
		p, err := e.prepareLock(ctx, req)
		if err != nil {
			return nil, err
		}
		prepared[i] = p
	}

	resolved, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}
	// A batch lands in exactly one project; a per-item project naming a
	// different one would silently store under the wrong namespace.
	for _, req := range reqs {
		if req.Project == "" {
			continue
		}
		item, perr := SanitizeProjectName(req.Project)
		if perr != nil {
			return nil, perr
		}
		if item != resolved {
			return nil, engerr.Validationf(
				"batch item project %q conflicts with batch project %q", req.Project, resolved)
		}
	}
	if err := e.schemas.EnsureProject(ctx, resolved); err != nil {
		return nil, err
	}

	var results []*LockResult
	err = retry.Retry(ctx, e.lockRetryConfig(), func(ctx context.Context) error {
		return e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
			if _, berr := c.Execute(ctx, "BEGIN"); berr != nil {
				return berr
			}
			results = results[:0]
			for _, p := range prepared {
				result, lerr := e.lockOne(ctx, c, p)
				if lerr != nil {
					_, _ = c.Execute(ctx, "ROLLBACK")
					return lerr
				}
				results = append(results, result)
			}
			_, cerr := c.Execute(ctx, "COMMIT")
			return cerr
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// preparedLock is a lock request with its derived fields computed once, so
// retries reuse the embedding instead of re-requesting it.
type preparedLock struct {
	req       LockRequest
	sessionID string
	hash      string
	preview   string
	concepts  []string
	priority  string
	embedding []float32
}

func (e *Engine) prepareLock(ctx context.Context, req LockRequest) (*preparedLock, error) {
	if req.Topic == "" {
		return nil, engerr.Validation("topic must not be empty")
	}

	priority := req.Priority
	if priority == "" {
		priority = DetectPriority(req.Content)
	} else if err := ValidatePriority(priority); err != nil {
		return nil, err
	}

	p := &preparedLock{
		req:       req,
		sessionID: session.SessionID(ctx),
		hash:      HashContent(req.Content),
		preview:   MakePreview(req.Content),
		concepts:  ExtractKeyConcepts(req.Content, req.Tags),
		priority:  priority,
	}

	// Best-effort enrichment: a degraded embedding service never blocks the
	// write. Empty content has nothing to embed.
	if e.embedder != nil && p.preview != "" {
		vec, err := e.embedder.Embed(ctx, p.preview)
		if err != nil {
			e.logger.WarnContext(ctx, "embedding skipped for lock",
				"topic", req.Topic, "error", err)
		} else {
			p.embedding = vec
		}
	}
	return p, nil
}

// lockOne picks the next version and inserts on an already pinned
// connection. A unique violation surfaces as version_collision for the
// caller's retry loop.
func (e *Engine) lockOne(ctx context.Context, c *storage.Conn, p *preparedLock) (*LockResult, error) {
	next, branchedFrom, err := e.nextVersion(ctx, c, p.req.Topic, p.req.VersionBase)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"tags":       p.req.Tags,
		"keywords":   p.concepts,
		"priority":   p.priority,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, engerr.Internal("failed to marshal lock metadata", err)
	}

	_, err = c.Execute(ctx,
		`INSERT INTO context_locks
			(id, session_id, label, version_major, version_minor, content,
			 content_hash, preview, key_concepts, priority, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), p.sessionID, p.req.Topic, next.Major, next.Minor,
		p.req.Content, p.hash, p.preview, pq.Array(p.concepts), p.priority,
		string(metadata), pq.Array(floats64(p.embedding)))
	if err != nil {
		return nil, err
	}

	e.audit(ctx, c, p.sessionID, "lock",
		fmt.Sprintf("locked context %q version %s", p.req.Topic, next),
		map[string]interface{}{"label": p.req.Topic, "version": next.String()})

	return &LockResult{
		Label:        p.req.Topic,
		Version:      next.String(),
		Hash:         p.hash,
		Preview:      p.preview,
		Priority:     p.priority,
		Embedded:     p.embedding != nil,
		BranchedFrom: branchedFrom,
	}, nil
}

// nextVersion computes the version for a new lock. Without a base: 1.0 for
// a fresh label, otherwise latest with the minor incremented. With a base:
// the base's major continues under its highest minor, and the response is
// flagged as a branch when the base is not the latest version.
func (e *Engine) nextVersion(ctx context.Context, c *storage.Conn, label, versionBase string) (Version, string, error) {
	row, found, err := c.QueryOne(ctx,
		`SELECT version_major, version_minor FROM context_locks
		 WHERE label = ? ORDER BY version_major DESC, version_minor DESC LIMIT 1`, label)
	if err != nil {
		return Version{}, "", err
	}
	if !found {
		if versionBase != "" {
			return Version{}, "", engerr.NotFound("version base does not exist").
				WithContext("label", label).WithContext("version_base", versionBase)
		}
		return FirstVersion, "", nil
	}
	latest := Version{Major: asInt(row["version_major"]), Minor: asInt(row["version_minor"])}

	if versionBase == "" {
		return latest.NextMinor(), "", nil
	}

	base, err := ParseVersion(versionBase)
	if err != nil {
		return Version{}, "", err
	}
	baseRow, baseFound, err := c.QueryOne(ctx,
		`SELECT 1 AS one FROM context_locks
		 WHERE label = ? AND version_major = ? AND version_minor = ?`,
		label, base.Major, base.Minor)
	if err != nil {
		return Version{}, "", err
	}
	if !baseFound || baseRow == nil {
		return Version{}, "", engerr.NotFound("version base does not exist").
			WithContext("label", label).WithContext("version_base", versionBase)
	}

	// Continue under the highest minor of the base's major so branches never
	// collide with existing versions.
	maxRow, _, err := c.QueryOne(ctx,
		`SELECT MAX(version_minor) AS max_minor FROM context_locks
		 WHERE label = ? AND version_major = ?`, label, base.Major)
	if err != nil {
		return Version{}, "", err
	}
	next := Version{Major: base.Major, Minor: asInt(maxRow["max_minor"]) + 1}

	branchedFrom := ""
	if base.Compare(latest) != 0 {
		branchedFrom = base.String()
	}
	return next, branchedFrom, nil
}

func (e *Engine) lockRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts:     e.cfg.Search.LockRetryBudget,
		InitialDelay:    10 * time.Millisecond,
		MaxDelay:        250 * time.Millisecond,
		Multiplier:      2.0,
		RandomizeFactor: 0.2,
		RetryIf:         engerr.Retryable,
	}
}

// audit records a MemoryEntry alongside a mutation. Audit failures are
// logged, never surfaced.
func (e *Engine) audit(ctx context.Context, c *storage.Conn, sessionID, category, content string, metadata map[string]interface{}) {
	data, err := json.Marshal(metadata)
	if err != nil {
		data = []byte("{}")
	}
	if _, err := c.Execute(ctx,
		"INSERT INTO memory_entries (id, session_id, category, content, metadata) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), sessionID, category, content, string(data)); err != nil {
		e.logger.WarnContext(ctx, "audit entry write failed", "category", category, "error", err)
	}
}
