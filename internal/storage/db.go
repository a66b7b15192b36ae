package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialects understood by the SQL sink.
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// DB wraps the SQL connection that backs the SQL sink.
type DB struct {
	conn    *sql.DB
	dialect string
}

// OpenDB opens (and migrates) a database for the given dialect. For SQLite
// dsn is a file path; its directory is created when missing.
func OpenDB(ctx context.Context, dialect, dsn string) (*DB, error) {
	var conn *sql.DB
	var err error
	switch dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		conn, err = sql.Open("sqlite", "file:"+dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
		if err == nil {
			// SQLite allows one writer; a single connection avoids SQLITE_BUSY
			conn.SetMaxOpenConns(1)
		}
	case DialectMySQL, DialectPostgres:
		conn, err = sql.Open(dialect, dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	db := &DB{conn: conn, dialect: dialect}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect returns the SQL dialect of db.
func (db *DB) Dialect() string { return db.dialect }

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) migrate(ctx context.Context) error {
	keyType, blobType, timeType := "TEXT", "TEXT", "DATETIME"
	switch db.dialect {
	case DialectMySQL:
		keyType, blobType = "VARCHAR(191)", "MEDIUMTEXT"
	case DialectPostgres:
		timeType = "TIMESTAMPTZ"
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS config_documents (
			doc_key ` + keyType + ` PRIMARY KEY,
			data ` + blobType + ` NOT NULL,
			updated_at ` + timeType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS config_revisions (
			id VARCHAR(36) PRIMARY KEY,
			doc_key ` + keyType + ` NOT NULL,
			data ` + blobType + ` NOT NULL,
			created_at ` + timeType + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS load_runs (
			id VARCHAR(36) PRIMARY KEY,
			plan_id VARCHAR(36) NOT NULL,
			started_at ` + timeType + ` NOT NULL,
			finished_at ` + timeType + ` NOT NULL,
			status VARCHAR(16) NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			rows_read INTEGER NOT NULL DEFAULT 0,
			error ` + blobType + ` NOT NULL
		)`,
	}
	if db.dialect != DialectMySQL {
		migrations = append(migrations,
			`CREATE INDEX IF NOT EXISTS idx_config_revisions_key ON config_revisions(doc_key, created_at)`)
	}

	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", strings.Fields(m)[5], err)
		}
	}
	return nil
}
