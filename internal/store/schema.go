package store

import (
	"context"
	"fmt"

	"cargobot/internal/logging"
)

// Tables as the sync service creates them in Supabase. Migrate only
// fills in what is missing, so it is safe against a live database.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bot_users (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cloud_sync_log (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL,
		order_number TEXT,
		event_type TEXT NOT NULL,
		event_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_created ON cloud_sync_log(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_type ON cloud_sync_log(event_type)`,
	`CREATE TABLE IF NOT EXISTS notifications_queue (
		id BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL,
		message_text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications_queue(status, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bot_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cloud_sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		order_number TEXT,
		event_type TEXT NOT NULL,
		event_data TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_created ON cloud_sync_log(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_type ON cloud_sync_log(event_type)`,
	`CREATE TABLE IF NOT EXISTS notifications_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER NOT NULL,
		message_text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		sent_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications_queue(status, created_at)`,
}

// column is a column added after the first release of a table.
type column struct {
	Table  string
	Column string
	Def    string
}

// pendingColumns covers queue tables created before retry tracking existed.
var pendingColumns = []column{
	{"notifications_queue", "attempts", "INTEGER NOT NULL DEFAULT 0"},
	{"notifications_queue", "last_error", "TEXT"},
}

// Migrate creates missing tables and columns. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryStore, "Migrate")
	defer timer.Stop()

	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	applied := 0
	for _, c := range pendingColumns {
		exists, err := s.columnExists(ctx, c.Table, c.Column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Column, c.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.Table, c.Column, err)
		}
		applied++
	}

	logging.Store("Schema ready (%s, %d columns added)", s.driver, applied)
	return nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	if s.driver == DriverPostgres {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
			table, column,
		).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		return n > 0, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
