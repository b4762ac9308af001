package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// SQLBackend keeps one row per key in a table of (state_key, data,
// updated_at). Any database/sql driver works once its dialect is set;
// CreateTable issues the matching DDL.
//
// Close only stops the backend. The *sql.DB belongs to the caller.
type SQLBackend struct {
	db *sql.DB
	q  sqlQueries

	closed atomic.Bool
}

// SQLDialect selects placeholder and upsert syntax.
type SQLDialect int

const (
	// DialectPostgreSQL numbers placeholders ($1, $2).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses ? placeholders and ON DUPLICATE KEY.
	DialectMySQL
	// DialectSQLite uses ? placeholders and ON CONFLICT.
	DialectSQLite
)

// ParseDialect maps a database/sql driver name to its dialect.
func ParseDialect(name string) (SQLDialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("persist: unknown sql dialect %q", name)
}

// SQLOption configures a SQLBackend.
type SQLOption func(*sqlSettings)

type sqlSettings struct {
	table   string
	dialect SQLDialect
}

// WithSQLTableName sets the table. Default: "state_values".
func WithSQLTableName(name string) SQLOption {
	return func(s *sqlSettings) {
		if name != "" {
			s.table = name
		}
	}
}

// WithSQLDialect sets the dialect. Default: DialectSQLite.
func WithSQLDialect(dialect SQLDialect) SQLOption {
	return func(s *sqlSettings) {
		s.dialect = dialect
	}
}

// sqlQueries are the statements for one table and dialect.
type sqlQueries struct {
	create, read, write, del string
}

func buildQueries(table string, d SQLDialect) sqlQueries {
	p1 := "?"
	if d == DialectPostgreSQL {
		p1 = "$1"
	}
	q := sqlQueries{
		read: fmt.Sprintf("SELECT data FROM %s WHERE state_key = %s", table, p1),
		del:  fmt.Sprintf("DELETE FROM %s WHERE state_key = %s", table, p1),
	}

	switch d {
	case DialectPostgreSQL:
		q.create = "CREATE TABLE IF NOT EXISTS %s (state_key VARCHAR(255) PRIMARY KEY, data BYTEA NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW())"
		q.write = "INSERT INTO %s (state_key, data, updated_at) VALUES ($1, $2, NOW()) " +
			"ON CONFLICT (state_key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at"
	case DialectMySQL:
		q.create = "CREATE TABLE IF NOT EXISTS %s (state_key VARCHAR(255) PRIMARY KEY, data LONGBLOB NOT NULL, updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP)"
		q.write = "INSERT INTO %s (state_key, data, updated_at) VALUES (?, ?, NOW()) " +
			"ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)"
	default:
		q.create = "CREATE TABLE IF NOT EXISTS %s (state_key TEXT PRIMARY KEY, data BLOB NOT NULL, updated_at TEXT NOT NULL DEFAULT (datetime('now')))"
		q.write = "INSERT INTO %s (state_key, data, updated_at) VALUES (?, ?, datetime('now')) " +
			"ON CONFLICT (state_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at"
	}
	q.create = fmt.Sprintf(q.create, table)
	q.write = fmt.Sprintf(q.write, table)
	return q
}

// NewSQLBackend wraps db. The table must exist; see CreateTable.
func NewSQLBackend(db *sql.DB, opts ...SQLOption) *SQLBackend {
	s := sqlSettings{table: "state_values", dialect: DialectSQLite}
	for _, opt := range opts {
		opt(&s)
	}
	return &SQLBackend{db: db, q: buildQueries(s.table, s.dialect)}
}

// CreateTable creates the table if it does not exist.
func (s *SQLBackend) CreateTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.q.create)
	return err
}

// Read returns the data saved under key.
func (s *SQLBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var data []byte
	switch err := s.db.QueryRowContext(ctx, s.q.read, key).Scan(&data); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("persist: read %q: %w", key, err)
	}
	return data, nil
}

// Write upserts key.
func (s *SQLBackend) Write(ctx context.Context, key string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, s.q.write, key, data); err != nil {
		return fmt.Errorf("persist: write %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, s.q.del, key); err != nil {
		return fmt.Errorf("persist: delete %q: %w", key, err)
	}
	return nil
}

// Close stops the backend. Later calls return ErrClosed.
func (s *SQLBackend) Close() error {
	s.closed.Store(true)
	return nil
}
