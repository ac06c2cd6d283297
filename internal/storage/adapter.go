// Package storage provides the schema-pinned PostgreSQL adapter. Project
// isolation happens here: every borrowed connection has its search_path set
// to the caller's project schema before the first statement and reset before
// release.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dementia-mcp/internal/config"
	engerr "dementia-mcp/internal/errors"
	"dementia-mcp/internal/logging"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// Adapter is the bounded async connection pool over PostgreSQL. One instance
// is created by the container and shared by every component; it is not a
// package global.
type Adapter struct {
	db     *sql.DB
	cfg    *config.DatabaseConfig
	logger logging.Logger
}

// NewAdapter opens the pool. The database is not contacted until the first
// borrow; call Ping to verify connectivity at startup.
func NewAdapter(cfg *config.DatabaseConfig) (*Adapter, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, engerr.TransientIO("failed to open database", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &Adapter{
		db:     db,
		cfg:    cfg,
		logger: logging.WithComponent("storage"),
	}, nil
}

// Ping verifies database connectivity.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.CommandTimeout())
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		return engerr.TransientIO("database ping failed", err)
	}
	return nil
}

// Close shuts the pool down.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Conn is a borrowed, schema-pinned connection. A handler that issues
// several statements against one project must run them all on the same Conn.
type Conn struct {
	conn    *sql.Conn
	adapter *Adapter
}

// WithSchema borrows a connection, pins search_path to the given project
// schema, runs fn, and guarantees the pin is cleared and the connection
// released on every exit path. The schema must already exist; a missing
// schema surfaces as project_unknown.
func (a *Adapter) WithSchema(ctx context.Context, schema string, fn func(*Conn) error) error {
	return a.withPinned(ctx, schema, true, fn)
}

// WithSystemSchema borrows a connection pinned to the control schema, which
// is ensured at startup and therefore not re-verified per borrow.
func (a *Adapter) WithSystemSchema(ctx context.Context, fn func(*Conn) error) error {
	return a.withPinned(ctx, a.cfg.SystemSchema, false, fn)
}

// WithoutSchema borrows a connection with the default search_path, for
// catalog queries and schema DDL.
func (a *Adapter) WithoutSchema(ctx context.Context, fn func(*Conn) error) error {
	return a.withPinned(ctx, "", false, fn)
}

func (a *Adapter) withPinned(ctx context.Context, schema string, verify bool, fn func(*Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, a.cfg.CommandTimeout())
	defer cancel()

	conn, err := a.db.Conn(acquireCtx)
	if err != nil {
		return engerr.TransientIO("connection acquisition failed", err)
	}
	// The reset runs on its own short deadline so a canceled request cannot
	// leak the pin to the next borrower.
	defer func() {
		resetCtx, resetCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, rerr := conn.ExecContext(resetCtx, "RESET search_path"); rerr != nil {
			a.logger.Warn("search_path reset failed, discarding connection", "error", rerr)
			_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		}
		resetCancel()
		_ = conn.Close()
	}()

	c := &Conn{conn: conn, adapter: a}

	if schema != "" {
		if verify {
			exists, verr := c.schemaExists(ctx, schema)
			if verr != nil {
				return verr
			}
			if !exists {
				return engerr.New(engerr.KindProjectUnknown, "project namespace does not exist").
					WithContext("schema", schema)
			}
		}
		// SET accepts no placeholders; the identifier is quoted instead.
		pin := "SET search_path TO " + pq.QuoteIdentifier(schema) + ", pg_catalog"
		if _, err := conn.ExecContext(ctx, pin); err != nil {
			return a.mapError(err, "schema pin failed")
		}
	}

	return fn(c)
}

func (c *Conn) schemaExists(ctx context.Context, schema string) (bool, error) {
	stmtCtx, cancel := context.WithTimeout(ctx, c.adapter.cfg.StatementTimeout())
	defer cancel()

	var one int
	err := c.conn.QueryRowContext(stmtCtx,
		"SELECT 1 FROM information_schema.schemata WHERE schema_name = $1", schema).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, c.adapter.mapError(err, "schema lookup failed")
	}
	return true, nil
}

// Query runs a statement and returns all rows as column-keyed maps. Source
// SQL uses `?` placeholders; the adapter translates to the Postgres dialect.
func (c *Conn) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	translated, err := TranslatePlaceholders(query)
	if err != nil {
		return nil, err
	}

	stmtCtx, cancel := context.WithTimeout(ctx, c.adapter.cfg.StatementTimeout())
	defer cancel()

	rows, err := c.conn.QueryContext(stmtCtx, translated, args...)
	if err != nil {
		return nil, c.adapter.mapError(err, "query failed")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, c.adapter.mapError(err, "column read failed")
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, c.adapter.mapError(err, "row scan failed")
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.adapter.mapError(err, "row iteration failed")
	}
	return out, nil
}

// QueryOne runs a statement expected to produce at most one row. The second
// return value reports presence.
func (c *Conn) QueryOne(ctx context.Context, query string, args ...interface{}) (Row, bool, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Execute runs a statement and returns the number of rows affected.
func (c *Conn) Execute(ctx context.Context, query string, args ...interface{}) (int64, error) {
	translated, err := TranslatePlaceholders(query)
	if err != nil {
		return 0, err
	}

	stmtCtx, cancel := context.WithTimeout(ctx, c.adapter.cfg.StatementTimeout())
	defer cancel()

	res, err := c.conn.ExecContext(stmtCtx, translated, args...)
	if err != nil {
		return 0, c.adapter.mapError(err, "execute failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, c.adapter.mapError(err, "rows-affected read failed")
	}
	return affected, nil
}

// Query is the single-statement convenience form of WithSchema + Conn.Query.
func (a *Adapter) Query(ctx context.Context, schema, query string, args ...interface{}) ([]Row, error) {
	var out []Row
	err := a.WithSchema(ctx, schema, func(c *Conn) error {
		rows, qerr := c.Query(ctx, query, args...)
		out = rows
		return qerr
	})
	return out, err
}

// Execute is the single-statement convenience form of WithSchema + Conn.Execute.
func (a *Adapter) Execute(ctx context.Context, schema, query string, args ...interface{}) (int64, error) {
	var affected int64
	err := a.WithSchema(ctx, schema, func(c *Conn) error {
		n, xerr := c.Execute(ctx, query, args...)
		affected = n
		return xerr
	})
	return affected, err
}

// PostgreSQL error codes the adapter maps to semantic kinds.
const (
	pgUniqueViolation   = "23505"
	pgInvalidSchemaName = "3F000"
	pgUndefinedTable    = "42P01"
	pgQueryCanceled     = "57014"
	pgTooManyConns      = "53300"
)

// mapError translates driver errors into the engine taxonomy. The adapter
// never swallows: the underlying code travels in the error context.
func (a *Adapter) mapError(err error, message string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return engerr.TransientIO(message, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return engerr.Wrap(engerr.KindVersionCollision, message, err).
				WithContext("pg_code", string(pqErr.Code)).
				WithContext("constraint", pqErr.Constraint)
		case pgInvalidSchemaName, pgUndefinedTable:
			return engerr.Wrap(engerr.KindProjectUnknown, message, err).
				WithContext("pg_code", string(pqErr.Code))
		case pgQueryCanceled, pgTooManyConns:
			return engerr.TransientIO(message, err).
				WithContext("pg_code", string(pqErr.Code))
		default:
			// Deterministic statement failures (syntax, type mismatch,
			// non-unique constraints) are not worth retrying.
			return engerr.Wrap(engerr.KindInternal, fmt.Sprintf("%s: query_error", message), err).
				WithContext("pg_code", string(pqErr.Code))
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return engerr.TransientIO(message, err)
	}

	return engerr.Internal(message, err)
}

// normalizeValue converts driver types into plain Go values. lib/pq returns
// text and bytea columns as []byte.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
