package memory

import (
	"context"

	"github.com/lib/pq"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// CheckHit is one advisory match for a pending action.
type CheckHit struct {
	Label       string   `json:"label"`
	Version     string   `json:"version"`
	Preview     string   `json:"preview"`
	Priority    string   `json:"priority"`
	KeyConcepts []string `json:"key_concepts"`
	Reason      string   `json:"reason"`
}

// CheckContexts is the pre-commit advisor: given free-form text describing
// what the caller is about to do, it returns every always_check context plus
// contexts whose key concepts intersect the text's prominent terms.
func (e *Engine) CheckContexts(ctx context.Context, text, project string) ([]CheckHit, error) {
	if text == "" {
		return nil, engerr.Validation("text must not be empty")
	}

	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	terms := ExtractKeyConcepts(text, nil)

	var hits []CheckHit
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 WHERE priority = ? OR key_concepts && ?
			 ORDER BY priority = ? DESC, last_accessed DESC NULLS LAST`,
			PriorityAlwaysCheck, pq.Array(terms), PriorityAlwaysCheck)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			lock := scanLock(row)
			reason := "key concepts overlap with the pending action"
			if lock.Priority == PriorityAlwaysCheck {
				reason = "marked always_check"
			}
			hits = append(hits, CheckHit{
				Label:       lock.Label,
				Version:     lock.Version.String(),
				Preview:     lock.Preview,
				Priority:    lock.Priority,
				KeyConcepts: lock.KeyConcepts,
				Reason:      reason,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}
