package memory

import (
	"context"
	"time"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// LatestVersion selects the highest version of a label.
const LatestVersion = "latest"

// RecallContext returns one context by topic and version and touches its
// access counters.
func (e *Engine) RecallContext(ctx context.Context, topic, version, project string) (*ContextLock, error) {
	if topic == "" {
		return nil, engerr.Validation("topic must not be empty")
	}

	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var lock *ContextLock
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		var rerr error
		lock, rerr = e.recallOne(ctx, c, topic, version)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// BatchRecallContexts recalls several topics at once. All topics must
// resolve; a single miss fails the batch before any access touch.
func (e *Engine) BatchRecallContexts(ctx context.Context, topics []string, project string) ([]*ContextLock, error) {
	if len(topics) == 0 {
		return nil, engerr.Validation("batch must contain at least one topic")
	}

	_, schema, err := e.schemaFor(ctx, project)
	if err != nil {
		return nil, err
	}

	var locks []*ContextLock
	err = e.adapter.WithSchema(ctx, schema, func(c *storage.Conn) error {
		found := make([]*ContextLock, 0, len(topics))
		for _, topic := range topics {
			lock, lerr := e.lookup(ctx, c, topic, LatestVersion)
			if lerr != nil {
				return lerr
			}
			found = append(found, lock)
		}
		for _, lock := range found {
			if terr := e.touch(ctx, c, lock); terr != nil {
				return terr
			}
		}
		locks = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locks, nil
}

func (e *Engine) recallOne(ctx context.Context, c *storage.Conn, topic, version string) (*ContextLock, error) {
	lock, err := e.lookup(ctx, c, topic, version)
	if err != nil {
		return nil, err
	}
	if err := e.touch(ctx, c, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// lookup resolves a (topic, version) pair to a row without touching it.
func (e *Engine) lookup(ctx context.Context, c *storage.Conn, topic, version string) (*ContextLock, error) {
	var row storage.Row
	var found bool
	var err error

	if version == "" || version == LatestVersion {
		row, found, err = c.QueryOne(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 WHERE label = ? ORDER BY version_major DESC, version_minor DESC LIMIT 1`, topic)
	} else {
		var v Version
		v, err = ParseVersion(version)
		if err != nil {
			return nil, err
		}
		row, found, err = c.QueryOne(ctx,
			`SELECT `+lockColumns+` FROM context_locks
			 WHERE label = ? AND version_major = ? AND version_minor = ?`,
			topic, v.Major, v.Minor)
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, engerr.NotFound("context not found").
			WithContext("topic", topic).WithContext("version", version)
	}
	return scanLock(row), nil
}

// touch advances the access counters and mirrors the change on the
// in-memory row.
func (e *Engine) touch(ctx context.Context, c *storage.Conn, lock *ContextLock) error {
	row, found, err := c.QueryOne(ctx,
		`UPDATE context_locks
		 SET last_accessed = now(), access_count = access_count + 1
		 WHERE id = ? RETURNING last_accessed, access_count`, lock.ID)
	if err != nil {
		return err
	}
	if found {
		lock.AccessCount = asInt64(row["access_count"])
		if ts, ok := row["last_accessed"].(time.Time); ok {
			lock.LastAccess = &ts
		}
	}
	return nil
}
