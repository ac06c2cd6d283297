package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	engerr "dementia-mcp/internal/errors"
)

// Schemas manages namespace lifecycle: the control schema holding global
// session state and the per-project schemas holding isolated memory tables.
// The database catalog itself is the project directory.
type Schemas struct {
	adapter *Adapter
	prefix  string
	system  string
}

// NewSchemas creates the schema manager.
func NewSchemas(adapter *Adapter) *Schemas {
	return &Schemas{
		adapter: adapter,
		prefix:  adapter.cfg.SchemaPrefix,
		system:  adapter.cfg.SystemSchema,
	}
}

// SchemaFor derives the namespace name for a sanitized project name.
func (s *Schemas) SchemaFor(project string) string {
	return s.prefix + project
}

// Reserved reports whether a project name would collide with the control
// schema.
func (s *Schemas) Reserved(project string) bool {
	return s.SchemaFor(project) == s.system
}

// ProjectFromSchema inverts SchemaFor; ok is false for non-project schemas.
func (s *Schemas) ProjectFromSchema(schema string) (string, bool) {
	if !strings.HasPrefix(schema, s.prefix) || schema == s.system {
		return "", false
	}
	return strings.TrimPrefix(schema, s.prefix), true
}

// EnsureSystem creates the control schema and its tables. Called once at
// startup.
func (s *Schemas) EnsureSystem(ctx context.Context) error {
	return s.adapter.WithoutSchema(ctx, func(c *Conn) error {
		q := pq.QuoteIdentifier(s.system)
		statements := []string{
			"CREATE SCHEMA IF NOT EXISTS " + q,
			`CREATE TABLE IF NOT EXISTS ` + q + `.sessions (
				id TEXT PRIMARY KEY,
				project_name TEXT NOT NULL DEFAULT '__PENDING__',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				last_active TIMESTAMPTZ NOT NULL DEFAULT now(),
				session_summary JSONB NOT NULL DEFAULT '{}'::jsonb
			)`,
			`CREATE TABLE IF NOT EXISTS ` + q + `.projects (
				schema_name TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS sessions_last_active_idx ON ` + q + `.sessions (last_active)`,
		}
		for _, stmt := range statements {
			if _, err := c.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureProject lazily creates a project namespace and its tables. Safe to
// call on every write; CREATE ... IF NOT EXISTS makes it idempotent.
func (s *Schemas) EnsureProject(ctx context.Context, project string) error {
	schema := s.SchemaFor(project)
	return s.adapter.WithoutSchema(ctx, func(c *Conn) error {
		q := pq.QuoteIdentifier(schema)
		statements := []string{
			"CREATE SCHEMA IF NOT EXISTS " + q,
			`CREATE TABLE IF NOT EXISTS ` + q + `.context_locks (
				id UUID PRIMARY KEY,
				session_id TEXT NOT NULL,
				label TEXT NOT NULL,
				version_major INT NOT NULL,
				version_minor INT NOT NULL,
				content TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				preview TEXT NOT NULL,
				key_concepts TEXT[] NOT NULL DEFAULT '{}',
				priority TEXT NOT NULL DEFAULT 'reference',
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				locked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				last_accessed TIMESTAMPTZ,
				access_count BIGINT NOT NULL DEFAULT 0,
				embedding FLOAT8[],
				UNIQUE (label, version_major, version_minor)
			)`,
			`CREATE TABLE IF NOT EXISTS ` + q + `.context_archives (
				id UUID PRIMARY KEY,
				original_id UUID NOT NULL,
				session_id TEXT NOT NULL,
				label TEXT NOT NULL,
				version_major INT NOT NULL,
				version_minor INT NOT NULL,
				content TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				preview TEXT NOT NULL,
				key_concepts TEXT[] NOT NULL DEFAULT '{}',
				priority TEXT NOT NULL DEFAULT 'reference',
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				locked_at TIMESTAMPTZ NOT NULL,
				deleted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				delete_reason TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS ` + q + `.memory_entries (
				id UUID PRIMARY KEY,
				session_id TEXT NOT NULL,
				category TEXT NOT NULL,
				content TEXT NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE TABLE IF NOT EXISTS ` + q + `.file_tags (
				id UUID PRIMARY KEY,
				session_id TEXT NOT NULL,
				file_path TEXT NOT NULL,
				fingerprint TEXT NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (session_id, file_path)
			)`,
			`CREATE INDEX IF NOT EXISTS context_locks_label_idx ON ` + q + `.context_locks (label)`,
			`CREATE INDEX IF NOT EXISTS memory_entries_category_idx ON ` + q + `.memory_entries (category, created_at)`,
		}
		for _, stmt := range statements {
			if _, err := c.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// ProjectExists reports whether a project namespace exists in the catalog.
func (s *Schemas) ProjectExists(ctx context.Context, project string) (bool, error) {
	schema := s.SchemaFor(project)
	var exists bool
	err := s.adapter.WithoutSchema(ctx, func(c *Conn) error {
		row, found, qerr := c.QueryOne(ctx,
			"SELECT schema_name FROM information_schema.schemata WHERE schema_name = ?", schema)
		if qerr != nil {
			return qerr
		}
		exists = found && row != nil
		return nil
	})
	return exists, err
}

// ListProjects enumerates project names from the database catalog, sorted.
func (s *Schemas) ListProjects(ctx context.Context) ([]string, error) {
	pattern := strings.ReplaceAll(s.prefix, "_", `\_`) + "%"
	var projects []string
	err := s.adapter.WithoutSchema(ctx, func(c *Conn) error {
		rows, qerr := c.Query(ctx,
			"SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE ?", pattern)
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			name, _ := row["schema_name"].(string)
			if project, ok := s.ProjectFromSchema(name); ok {
				projects = append(projects, project)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(projects)
	return projects, nil
}

// RegisterProject records the display name for a created project and rejects
// a second, different display name whose sanitized form collides.
func (s *Schemas) RegisterProject(ctx context.Context, project, displayName string) error {
	schema := s.SchemaFor(project)
	return s.adapter.WithSystemSchema(ctx, func(c *Conn) error {
		row, found, err := c.QueryOne(ctx,
			"SELECT display_name FROM projects WHERE schema_name = ?", schema)
		if err != nil {
			return err
		}
		if found {
			existing, _ := row["display_name"].(string)
			if existing != displayName {
				return engerr.Validationf(
					"project name %q collides with existing project %q after sanitization",
					displayName, existing).WithContext("schema", schema)
			}
			return nil
		}
		_, err = c.Execute(ctx,
			"INSERT INTO projects (schema_name, display_name) VALUES (?, ?) ON CONFLICT (schema_name) DO NOTHING",
			schema, displayName)
		return err
	})
}

// DisplayNames returns the registered display names keyed by project name.
func (s *Schemas) DisplayNames(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := s.adapter.WithSystemSchema(ctx, func(c *Conn) error {
		rows, qerr := c.Query(ctx, "SELECT schema_name, display_name FROM projects")
		if qerr != nil {
			return qerr
		}
		for _, row := range rows {
			schema, _ := row["schema_name"].(string)
			display, _ := row["display_name"].(string)
			if project, ok := s.ProjectFromSchema(schema); ok {
				out[project] = display
			}
		}
		return nil
	})
	return out, err
}

// StorageSize returns the total size in bytes of a project's tables.
func (s *Schemas) StorageSize(ctx context.Context, project string) (int64, error) {
	schema := s.SchemaFor(project)
	var size int64
	err := s.adapter.WithoutSchema(ctx, func(c *Conn) error {
		row, found, qerr := c.QueryOne(ctx,
			`SELECT COALESCE(SUM(pg_total_relation_size(format('%I.%I', schemaname, tablename)::regclass)), 0) AS bytes
			 FROM pg_tables WHERE schemaname = ?`, schema)
		if qerr != nil {
			return qerr
		}
		if found {
			switch v := row["bytes"].(type) {
			case int64:
				size = v
			case string:
				_, _ = fmt.Sscan(v, &size)
			}
		}
		return nil
	})
	return size, err
}
