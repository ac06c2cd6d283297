package memory

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// AllVersions selects every version of a label.
const AllVersions = "all"

// LabelVersion identifies one affected context version.
type LabelVersion struct {
	Label   string `json:"label"`
	Version string `json:"version"`
}

// UnlockResult summarizes an unlock operation.
type UnlockResult struct {
	Deleted  int            `json:"deleted"`
	Archived int            `json:"archived"`
	Affected []LabelVersion `json:"affected"`
}

// UnlockContext removes context versions, archiving them first unless the
// caller opts out. Versions carrying always_check priority require force.
func (e *Engine) UnlockContext(ctx context.Context, topic, version string, force, archive bool, project string) (*UnlockResult, error) {
	if topic == "" {
		return nil, engerr.Validation("topic must not be empty")
	}
	if version == "" {
		version = AllVersions
	}

	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var result *UnlockResult
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := e.gatherUnlockRows(ctx, c, topic, version)
		if qerr != nil {
			return qerr
		}
		if len(rows) == 0 {
			return engerr.NotFound("context not found").
				WithContext("topic", topic).WithContext("version", version)
		}

		if !force {
			for _, row := range rows {
				if priority, _ := row["priority"].(string); priority == PriorityAlwaysCheck {
					return engerr.ConfirmationRequired(
						"context is marked always_check; pass force to unlock").
						WithContext("topic", topic)
				}
			}
		}

		ids := make([]string, 0, len(rows))
		affected := make([]LabelVersion, 0, len(rows))
		for _, row := range rows {
			id, _ := row["id"].(string)
			ids = append(ids, id)
			v := Version{Major: asInt(row["version_major"]), Minor: asInt(row["version_minor"])}
			affected = append(affected, LabelVersion{Label: topic, Version: v.String()})
		}

		archived := 0
		if archive {
			n, aerr := c.Execute(ctx,
				`INSERT INTO context_archives
					(id, original_id, session_id, label, version_major, version_minor,
					 content, content_hash, preview, key_concepts, priority, metadata,
					 locked_at, delete_reason)
				 SELECT gen_random_uuid(), id, session_id, label, version_major, version_minor,
					 content, content_hash, preview, key_concepts, priority, metadata,
					 locked_at, ?
				 FROM context_locks WHERE id = ANY(?)`,
				"unlock_context", pq.Array(ids))
			if aerr != nil {
				return aerr
			}
			archived = int(n)
		}

		deleted, derr := c.Execute(ctx,
			"DELETE FROM context_locks WHERE id = ANY(?)", pq.Array(ids))
		if derr != nil {
			return derr
		}

		e.audit(ctx, c, session.SessionID(ctx), "unlock",
			fmt.Sprintf("unlocked %d version(s) of %q", deleted, topic),
			map[string]interface{}{"label": topic, "archived": archived})

		result = &UnlockResult{Deleted: int(deleted), Archived: archived, Affected: affected}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) gatherUnlockRows(ctx context.Context, c *storage.Conn, topic, version string) ([]storage.Row, error) {
	if version == AllVersions {
		return c.Query(ctx,
			`SELECT id, version_major, version_minor, priority FROM context_locks
			 WHERE label = ? ORDER BY version_major, version_minor`, topic)
	}
	v, err := ParseVersion(version)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx,
		`SELECT id, version_major, version_minor, priority FROM context_locks
		 WHERE label = ? AND version_major = ? AND version_minor = ?`,
		topic, v.Major, v.Minor)
}
