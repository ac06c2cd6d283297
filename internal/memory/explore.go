package memory

import (
	"context"
	"sort"
	"time"

	"dementia-mcp/internal/storage"
)

// TreeNode groups every version of one label.
type TreeNode struct {
	Label    string        `json:"label"`
	Latest   string        `json:"latest"`
	Versions []VersionInfo `json:"versions"`
}

// VersionInfo is one version's summary line.
type VersionInfo struct {
	Version     string     `json:"version"`
	Priority    string     `json:"priority"`
	Preview     string     `json:"preview"`
	LockedAt    time.Time  `json:"locked_at"`
	LastAccess  *time.Time `json:"last_accessed,omitempty"`
	AccessCount int64      `json:"access_count"`
}

// ContextTree is the explore result: grouped by label, or flat.
type ContextTree struct {
	Project string        `json:"project"`
	Labels  []TreeNode    `json:"labels,omitempty"`
	Flat    []VersionInfo `json:"contexts,omitempty"`
}

// ExploreContextTree summarizes every context in the project, grouped by
// label unless the caller asks for the flat form.
func (e *Engine) ExploreContextTree(ctx context.Context, flat bool, project string) (*ContextTree, error) {
	resolved, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var locks []*ContextLock
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 ORDER BY label, version_major, version_minor`)
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

	tree := &ContextTree{Project: resolved}
	if flat {
		for _, lock := range locks {
			tree.Flat = append(tree.Flat, versionInfo(lock))
		}
		return tree, nil
	}

	byLabel := make(map[string]*TreeNode)
	var order []string
	for _, lock := range locks {
		node, ok := byLabel[lock.Label]
		if !ok {
			node = &TreeNode{Label: lock.Label}
			byLabel[lock.Label] = node
			order = append(order, lock.Label)
		}
		node.Versions = append(node.Versions, versionInfo(lock))
		node.Latest = lock.Version.String()
	}
	sort.Strings(order)
	for _, label := range order {
		tree.Labels = append(tree.Labels, *byLabel[label])
	}
	return tree, nil
}

func versionInfo(lock *ContextLock) VersionInfo {
	return VersionInfo{
		Version:     lock.Version.String(),
		Priority:    lock.Priority,
		Preview:     lock.Preview,
		LockedAt:    lock.LockedAt,
		LastAccess:  lock.LastAccess,
		AccessCount: lock.AccessCount,
	}
}

// Dashboard is the project health summary.
type Dashboard struct {
	Project           string           `json:"project"`
	TotalContexts     int64            `json:"total_contexts"`
	CountsByPriority  map[string]int64 `json:"counts_by_priority"`
	StorageBytes      int64            `json:"storage_bytes"`
	TopAccessed       []VersionSummary `json:"top_accessed,omitempty"`
	LeastAccessed     []VersionSummary `json:"least_accessed,omitempty"`
	NeverAccessed     []string         `json:"never_accessed,omitempty"`
	StaleContexts     []string         `json:"stale_contexts,omitempty"`
	EmbeddingCoverage float64          `json:"embedding_coverage"`
}

// VersionSummary names one context version with its access count.
type VersionSummary struct {
	Label       string `json:"label"`
	Version     string `json:"version"`
	AccessCount int64  `json:"access_count"`
}

// ContextDashboard aggregates usage statistics for the resolved project:
// priority distribution, storage footprint, access extremes and contexts
// gone stale.
func (e *Engine) ContextDashboard(ctx context.Context, project string) (*Dashboard, error) {
	resolved, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{
		Project:          resolved,
		CountsByPriority: make(map[string]int64),
	}
	staleCutoff := time.Now().Add(-time.Duration(e.cfg.Search.StalenessDays) * 24 * time.Hour)

	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			"SELECT priority, COUNT(*) AS n FROM context_locks GROUP BY priority")
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			priority, _ := row["priority"].(string)
			n := asInt64(row["n"])
			dash.CountsByPriority[priority] = n
			dash.TotalContexts += n
		}

		top, qerr := c.Query(ctx,
			`SELECT label, version_major, version_minor, access_count FROM context_locks
			 WHERE access_count > 0 ORDER BY access_count DESC, label LIMIT 5`)
		if qerr != nil {
			return qerr
		}
		dash.TopAccessed = summarize(top)

		least, qerr := c.Query(ctx,
			`SELECT label, version_major, version_minor, access_count FROM context_locks
			 WHERE access_count > 0 ORDER BY access_count ASC, label LIMIT 5`)
		if qerr != nil {
			return qerr
		}
		dash.LeastAccessed = summarize(least)

		never, qerr := c.Query(ctx,
			"SELECT DISTINCT label FROM context_locks WHERE access_count = 0 ORDER BY label")
		if qerr != nil {
			return qerr
		}
		for _, row := range never {
			if label, ok := row["label"].(string); ok {
				dash.NeverAccessed = append(dash.NeverAccessed, label)
			}
		}

		stale, qerr := c.Query(ctx,
			`SELECT DISTINCT label FROM context_locks
			 WHERE COALESCE(last_accessed, locked_at) < ? ORDER BY label`, staleCutoff)
		if qerr != nil {
			return qerr
		}
		for _, row := range stale {
			if label, ok := row["label"].(string); ok {
				dash.StaleContexts = append(dash.StaleContexts, label)
			}
		}

		cov, found, qerr := c.QueryOne(ctx,
			"SELECT COUNT(embedding) AS embedded, COUNT(*) AS total FROM context_locks")
		if qerr != nil {
			return qerr
		}
		if found {
			if total := asInt64(cov["total"]); total > 0 {
				dash.EmbeddingCoverage = float64(asInt64(cov["embedded"])) / float64(total)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	size, serr := e.schemas.StorageSize(ctx, resolved)
	if serr != nil {
		e.logger.WarnContext(ctx, "storage size lookup failed", "project", resolved, "error", serr)
	} else {
		dash.StorageBytes = size
	}
	return dash, nil
}

func summarize(rows []storage.Row) []VersionSummary {
	out := make([]VersionSummary, 0, len(rows))
	for _, row := range rows {
		label, _ := row["label"].(string)
		v := Version{Major: asInt(row["version_major"]), Minor: asInt(row["version_minor"])}
		out = append(out, VersionSummary{
			Label:       label,
			Version:     v.String(),
			AccessCount: asInt64(row["access_count"]),
		})
	}
	return out
}
