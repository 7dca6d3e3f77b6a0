// Package store owns the relational database: connection setup for SQLite or
// Postgres, schema migrations, and the single atomic operation the rest of
// the system depends on (the per-month counter increment).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB with the dialect it was opened against. Query text is
// written with ? placeholders; Rebind converts them to $N for Postgres.
type DB struct {
	*sql.DB
	postgres bool
}

// Postgres reports whether the underlying store is Postgres.
func (d *DB) Postgres() bool { return d.postgres }

// IsPostgresURL reports whether the connection string targets Postgres.
func IsPostgresURL(url string) bool {
	u := strings.ToLower(url)
	return strings.HasPrefix(u, "postgresql://") || strings.HasPrefix(u, "postgres://")
}

// Open connects to Postgres when databaseURL is set, otherwise to the SQLite
// file. The SQLite path gets WAL mode and a generous busy timeout so one
// writer and many readers coexist.
func Open(databaseURL, sqliteFile string) (*DB, error) {
	if databaseURL != "" && IsPostgresURL(databaseURL) {
		db, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		return &DB{DB: db, postgres: true}, nil
	}

	sep := "?"
	if strings.Contains(sqliteFile, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", sqliteFile+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Some drivers don't parse connection string pragmas; set them explicitly.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{DB: db}, nil
}

// Rebind converts ? placeholders to $1..$N for Postgres. SQLite text passes
// through unchanged.
func (d *DB) Rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// Migrate creates all tables. Idempotent; safe to run at every startup.
func (d *DB) Migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + serial + `,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT DEFAULT '',
			role TEXT DEFAULT 'user',
			active INTEGER DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS active_sessions (
			username TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			issued_at TEXT DEFAULT '',
			ip TEXT DEFAULT '',
			user_agent TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS counters (
			month_year TEXT PRIMARY KEY,
			counter INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_orders (
			id ` + serial + `,
			username TEXT DEFAULT '',
			dealer_name TEXT DEFAULT '',
			city TEXT DEFAULT '',
			order_id TEXT DEFAULT '',
			report_name TEXT DEFAULT '',
			generated_at TEXT DEFAULT '',
			order_type TEXT DEFAULT 'new'
		)`,
		`CREATE TABLE IF NOT EXISTS issued_order_ids (
			id ` + serial + `,
			order_id TEXT UNIQUE,
			given_to_name TEXT DEFAULT '',
			dealer_name TEXT DEFAULT '',
			city TEXT DEFAULT '',
			given_by_user TEXT DEFAULT '',
			given_at TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS order_id_views (
			id ` + serial + `,
			username TEXT DEFAULT '',
			order_id TEXT DEFAULT '',
			viewed_at TEXT DEFAULT '',
			ip TEXT DEFAULT '',
			user_agent TEXT DEFAULT ''
		)`,
	}

	for _, ddl := range tables {
		if _, err := d.Exec(ddl); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

// IncrementCounter atomically bumps the counter for the given month key and
// returns the new value, inserting counter=1 when the key is new. The whole
// read-modify-write is a single upsert statement so concurrent callers are
// serialized by the store's row-level locking, not by anything in-process.
func (d *DB) IncrementCounter(ctx context.Context, monthYear string) (int64, error) {
	var query string
	if d.postgres {
		query = `INSERT INTO counters (month_year, counter) VALUES ($1, 1)
			ON CONFLICT (month_year) DO UPDATE SET counter = counters.counter + 1
			RETURNING counter`
	} else {
		query = `INSERT INTO counters (month_year, counter) VALUES (?, 1)
			ON CONFLICT(month_year) DO UPDATE SET counter = counter + 1
			RETURNING counter`
	}

	var counter int64
	if err := d.QueryRowContext(ctx, query, monthYear).Scan(&counter); err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", monthYear, err)
	}
	return counter, nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either supported store.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "SQLSTATE 23505") || // pgx
		strings.Contains(msg, "duplicate key value")
}
