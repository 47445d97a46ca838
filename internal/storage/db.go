// Package storage persists expenses, subscriptions, budgets, users and
// sessions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so range predicates compare
// lexically.
const timeLayout = "2006-01-02T15:04:05.000Z"

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection: ":memory:" databases are per-connection, and SQLite
	// serializes writers anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			email_notifications INTEGER NOT NULL DEFAULT 1,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			last_activity TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			date TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_owner_date ON expenses(owner_id, date)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			cost_cents INTEGER NOT NULL,
			billing_cycle TEXT NOT NULL,
			start_date TEXT NOT NULL,
			next_billing_date TEXT NOT NULL,
			status TEXT NOT NULL,
			category TEXT NOT NULL,
			reminder_days INTEGER NOT NULL,
			auto_renew INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			last_reminder_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_owner_next ON subscriptions(owner_id, next_billing_date)`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			period TEXT NOT NULL,
			total_limit_cents INTEGER NOT NULL,
			category_limits TEXT NOT NULL DEFAULT '[]',
			warning_threshold INTEGER NOT NULL,
			critical_threshold INTEGER NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			current_spending_cents INTEGER NOT NULL DEFAULT 0,
			last_warning_at TEXT,
			last_critical_at TEXT,
			is_active INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budgets_owner_active ON budgets(owner_id, is_active)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// notFound maps sql.ErrNoRows to models.ErrNotFound.
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, models.ErrNotFound)
	}
	return err
}

func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, models.ErrNotFound)
	}
	return nil
}
