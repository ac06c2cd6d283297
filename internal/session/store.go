package session

import (
	"context"
	"encoding/json"
	"time"

	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/storage"
)

// PostgresStore is the durable Store over the control schema. Session rows
// are global: a session exists before any project binding.
type PostgresStore struct {
	adapter *storage.Adapter
}

// NewPostgresStore creates the store.
func NewPostgresStore(adapter *storage.Adapter) *PostgresStore {
	return &PostgresStore{adapter: adapter}
}

// Create inserts a session row, or returns the existing row for the same
// id. Idempotent by contract.
func (ps *PostgresStore) Create(ctx context.Context, id, projectName string) (*Session, error) {
	if id == "" {
		return nil, engerr.Validation("session id must not be empty")
	}
	if projectName == "" {
		projectName = PendingProject
	}

	var sess *Session
	err := ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		if _, err := c.Execute(ctx,
			"INSERT INTO sessions (id, project_name) VALUES (?, ?) ON CONFLICT (id) DO NOTHING",
			id, projectName); err != nil {
			return err
		}
		var err error
		sess, err = ps.scanOne(ctx, c, id)
		return err
	})
	return sess, err
}

// Get loads a session; absence surfaces as not_found.
func (ps *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess *Session
	err := ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		var err error
		sess, err = ps.scanOne(ctx, c, id)
		return err
	})
	return sess, err
}

// UpdateProject rebinds the session to a project. This is the single source
// of truth for project switching.
func (ps *PostgresStore) UpdateProject(ctx context.Context, id, projectName string) error {
	return ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		affected, err := c.Execute(ctx,
			"UPDATE sessions SET project_name = ? WHERE id = ?", projectName, id)
		if err != nil {
			return err
		}
		if affected == 0 {
			return engerr.NotFound("session not found").WithContext("session_id", id)
		}
		return nil
	})
}

// Touch advances last_active; GREATEST keeps it monotonically
// non-decreasing under concurrent touches.
func (ps *PostgresStore) Touch(ctx context.Context, id string) error {
	return ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		_, err := c.Execute(ctx,
			"UPDATE sessions SET last_active = GREATEST(last_active, now()) WHERE id = ?", id)
		return err
	})
}

// UpdateSummary stores the structured session snapshot.
func (ps *PostgresStore) UpdateSummary(ctx context.Context, id string, summary *Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return engerr.Internal("failed to marshal session summary", err)
	}
	return ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		affected, xerr := c.Execute(ctx,
			"UPDATE sessions SET session_summary = ? WHERE id = ?", string(data), id)
		if xerr != nil {
			return xerr
		}
		if affected == 0 {
			return engerr.NotFound("session not found").WithContext("session_id", id)
		}
		return nil
	})
}

// CleanupExpired removes sessions idle beyond the cutoff and returns the
// number removed.
func (ps *PostgresStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := ps.adapter.WithSystemSchema(ctx, func(c *storage.Conn) error {
		var xerr error
		removed, xerr = c.Execute(ctx,
			"DELETE FROM sessions WHERE last_active < ?", cutoff)
		return xerr
	})
	return removed, err
}

func (ps *PostgresStore) scanOne(ctx context.Context, c *storage.Conn, id string) (*Session, error) {
	row, found, err := c.QueryOne(ctx,
		"SELECT id, project_name, created_at, last_active, session_summary FROM sessions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, engerr.NotFound("session not found").WithContext("session_id", id)
	}
	return scanSession(row)
}

func scanSession(row storage.Row) (*Session, error) {
	sess := &Session{}
	sess.ID, _ = row["id"].(string)
	sess.ProjectName, _ = row["project_name"].(string)
	if ts, ok := row["created_at"].(time.Time); ok {
		sess.CreatedAt = ts
	}
	if ts, ok := row["last_active"].(time.Time); ok {
		sess.LastActive = ts
	}
	if raw, ok := row["session_summary"].(string); ok && raw != "" && raw != "{}" {
		var summary Summary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, engerr.Internal("failed to unmarshal session summary", err)
		}
		sess.Summary = &summary
	}
	return sess, nil
}
