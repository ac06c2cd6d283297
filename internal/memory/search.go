package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// Relevance contributions per matched field. Contributions sum; ties break
// on last_accessed, newest first.
const (
	scoreLabelExact  = 1.0
	scoreKeyConcept  = 0.7
	scoreContent     = 0.5
	scoreLabelPartial = 0.5
	scorePreview     = 0.3
)

// SearchHit is one ranked result.
type SearchHit struct {
	Label       string     `json:"label"`
	Version     string     `json:"version"`
	Preview     string     `json:"preview"`
	Priority    string     `json:"priority"`
	KeyConcepts []string   `json:"key_concepts"`
	Score       float64    `json:"score"`
	LastAccess  *time.Time `json:"last_accessed,omitempty"`
}

// SearchRequest carries the arguments of a keyword search.
type SearchRequest struct {
	Query    string
	Priority string
	Tags     []string
	Limit    int
	Project  string
}

// SearchContexts ranks contexts by substring relevance within the resolved
// project. The result set is bounded by the project schema alone; there is
// deliberately no session predicate, so work from prior sessions in the
// same project stays visible.
func (e *Engine) SearchContexts(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	if req.Query == "" {
		return nil, engerr.Validation("query must not be empty")
	}
	if req.Priority != "" {
		if err := ValidatePriority(req.Priority); err != nil {
			return nil, err
		}
	}
	limit := e.clampLimit(req.Limit)

	_, schema, err := e.schemaFor(ctx, req.Project)
	if err != nil {
		return nil, err
	}

	var locks []*ContextLock
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 WHERE (? = '' OR priority = ?)`,
			req.Priority, req.Priority)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			locks = append(locks, scanLock(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hits := rankLocks(locks, req.Query, req.Tags)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// rankLocks scores candidates in memory. Keyword search is the fallback
// path for small corpora; scanning beats maintaining a full-text index
// per project schema.
func rankLocks(locks []*ContextLock, query string, tags []string) []SearchHit {
	q := strings.ToLower(query)
	var hits []SearchHit
	for _, lock := range locks {
		if len(tags) > 0 && !hasAnyTag(lock, tags) {
			continue
		}
		score := scoreLock(lock, q)
		if score == 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Label:       lock.Label,
			Version:     lock.Version.String(),
			Preview:     lock.Preview,
			Priority:    lock.Priority,
			KeyConcepts: lock.KeyConcepts,
			Score:       score,
			LastAccess:  lock.LastAccess,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return laterAccess(hits[i].LastAccess, hits[j].LastAccess)
	})
	return hits
}

func scoreLock(lock *ContextLock, q string) float64 {
	score := 0.0
	label := strings.ToLower(lock.Label)
	switch {
	case label == q:
		score += scoreLabelExact
	case strings.Contains(label, q):
		score += scoreLabelPartial
	}
	for _, concept := range lock.KeyConcepts {
		if strings.Contains(strings.ToLower(concept), q) {
			score += scoreKeyConcept
			break
		}
	}
	if strings.Contains(strings.ToLower(lock.Content), q) {
		score += scoreContent
	}
	if strings.Contains(strings.ToLower(lock.Preview), q) {
		score += scorePreview
	}
	return score
}

// hasAnyTag matches the requested tags against the lock's metadata tags.
func hasAnyTag(lock *ContextLock, tags []string) bool {
	raw, ok := lock.Metadata["tags"].([]interface{})
	if !ok {
		return false
	}
	have := make(map[string]bool, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			have[strings.ToLower(s)] = true
		}
	}
	for _, want := range tags {
		if have[strings.ToLower(want)] {
			return true
		}
	}
	return false
}

func laterAccess(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.Search.DefaultLimit
	}
	if limit > e.cfg.Search.MaxLimit {
		return e.cfg.Search.MaxLimit
	}
	return limit
}
