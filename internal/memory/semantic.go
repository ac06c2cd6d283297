package memory

import (
	"context"
	"math"
	"sort"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// SemanticResult carries ranked hits plus the degradation marker set when
// the engine had to fall back to keyword search.
type SemanticResult struct {
	Hits     []SearchHit `json:"hits"`
	Degraded bool        `json:"degraded"`
	Warning  string      `json:"warning,omitempty"`
}

// SemanticSearchContexts ranks contexts by vector distance to the query
// embedding, merging in top keyword hits. When the embedding collaborator
// is missing or unreachable, the call degrades to keyword search and says
// so instead of failing.
func (e *Engine) SemanticSearchContexts(ctx context.Context, query string, limit int, project string) (*SemanticResult, error) {
	if query == "" {
		return nil, engerr.Validation("query must not be empty")
	}
	limit = e.clampLimit(limit)

	if e.embedder == nil {
		return e.keywordFallback(ctx, query, limit, project, "embedding service not configured")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.WarnContext(ctx, "query embedding failed, falling back to keyword search", "error", err)
		return e.keywordFallback(ctx, query, limit, project, "embedding service unavailable")
	}

	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var locks []*ContextLock
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT `+lockColumns+` FROM context_locks WHERE embedding IS NOT NULL`)
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

	hits := make([]SearchHit, 0, len(locks))
	for _, lock := range locks {
		sim := cosineSimilarity(queryVec, lock.Embedding)
		if sim <= 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Label:       lock.Label,
			Version:     lock.Version.String(),
			Preview:     lock.Preview,
			Priority:    lock.Priority,
			KeyConcepts: lock.KeyConcepts,
			Score:       sim,
			LastAccess:  lock.LastAccess,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return laterAccess(hits[i].LastAccess, hits[j].LastAccess)
	})

	// Merge in keyword hits that vectors missed: rows locked before
	// embeddings were enabled still deserve a chance to surface.
	keyword, kerr := e.SearchContexts(ctx, SearchRequest{
		Query: query, Limit: e.cfg.Search.SemanticMergeTop, Project: project,
	})
	if kerr == nil {
		hits = mergeHits(hits, keyword)
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return &SemanticResult{Hits: hits}, nil
}

func (e *Engine) keywordFallback(ctx context.Context, query string, limit int, project, warning string) (*SemanticResult, error) {
	hits, err := e.SearchContexts(ctx, SearchRequest{Query: query, Limit: limit, Project: project})
	if err != nil {
		return nil, err
	}
	return &SemanticResult{Hits: hits, Degraded: true, Warning: warning}, nil
}

// mergeHits appends keyword hits absent from the vector ranking, with their
// keyword score halved so vector matches keep precedence.
func mergeHits(vector, keyword []SearchHit) []SearchHit {
	present := make(map[string]bool, len(vector))
	for _, hit := range vector {
		present[hit.Label+"@"+hit.Version] = true
	}
	for _, hit := range keyword {
		if present[hit.Label+"@"+hit.Version] {
			continue
		}
		hit.Score /= 2
		vector = append(vector, hit)
	}
	return vector
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
