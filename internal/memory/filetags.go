package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/session"
	"dementia-mcp/internal/storage"
)

// FileTag associates a workspace file with the session that touched it,
// keyed by a caller-supplied content fingerprint so agents can detect
// edits made outside their session.
type FileTag struct {
	FilePath    string                 `json:"file_path"`
	Fingerprint string                 `json:"fingerprint"`
	SessionID   string                 `json:"session_id"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// TagFile records or refreshes the fingerprint for a file. Upserts on
// (session, path).
func (e *Engine) TagFile(ctx context.Context, filePath, fingerprint string, metadata map[string]interface{}, project string) (*FileTag, error) {
	if filePath == "" {
		return nil, engerr.Validation("file_path must not be empty")
	}
	if fingerprint == "" {
		return nil, engerr.Validation("fingerprint must not be empty")
	}

	resolved, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}
	if err := e.schemas.EnsureProject(ctx, resolved); err != nil {
		return nil, err
	}

	id := session.SessionID(ctx)
	encoded, err := json.Marshal(metadata)
	if err != nil || metadata == nil {
		encoded = []byte("{}")
	}

	tag := &FileTag{
		FilePath:    filePath,
		Fingerprint: fingerprint,
		SessionID:   id,
		Metadata:    metadata,
	}
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		row, found, xerr := c.QueryOne(ctx,
			`INSERT INTO file_tags (id, session_id, file_path, fingerprint, metadata)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (session_id, file_path)
			 DO UPDATE SET fingerprint = EXCLUDED.fingerprint,
			               metadata = EXCLUDED.metadata,
			               updated_at = now()
			 RETURNING updated_at`,
			uuid.New().String(), id, filePath, fingerprint, string(encoded))
		if xerr != nil {
			return xerr
		}
		if found {
			if ts, ok := row["updated_at"].(time.Time); ok {
				tag.UpdatedAt = ts
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tag, nil
}

// FileTags lists the project's file tags, optionally narrowed to one path.
// Tags from every session are returned so fingerprint drift across sessions
// is visible.
func (e *Engine) FileTags(ctx context.Context, filePath, project string) ([]FileTag, error) {
	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var tags []FileTag
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		rows, qerr := c.Query(ctx,
			`SELECT session_id, file_path, fingerprint, metadata, updated_at FROM file_tags
			 WHERE (? = '' OR file_path = ?) ORDER BY file_path, updated_at DESC`,
			filePath, filePath)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			tag := FileTag{}
			tag.SessionID, _ = row["session_id"].(string)
			tag.FilePath, _ = row["file_path"].(string)
			tag.Fingerprint, _ = row["fingerprint"].(string)
			if raw, ok := row["metadata"].(string); ok && raw != "" && raw != "{}" {
				_ = json.Unmarshal([]byte(raw), &tag.Metadata)
			}
			if ts, ok := row["updated_at"].(time.Time); ok {
				tag.UpdatedAt = ts
			}
			tags = append(tags, tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}
