package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL DEFAULT '0',
		current_qty INTEGER NOT NULL CHECK (current_qty >= 0),
		min_qty INTEGER NOT NULL CHECK (min_qty >= 0),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS material_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER REFERENCES inventory_items(id),
		proposed_name TEXT,
		proposed_category TEXT,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL DEFAULT '0',
		observation TEXT NOT NULL DEFAULT '',
		requester_id INTEGER NOT NULL,
		requester_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rejection_reason TEXT,
		reviewed_by_id INTEGER NOT NULL DEFAULT 0,
		reviewed_by_name TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK ((item_id IS NULL) <> (proposed_name IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requester ON material_requests(requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_created_at ON material_requests(created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME NOT NULL,
		user_id INTEGER NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_log(created_at)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
}

// NewSQLiteStore opens (and creates if needed) a SQLite database at dbPath.
// All access goes through a single connection, so SQLite's one-writer rule
// also serializes the store's transactions.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)" +
		"&_time_format=sqlite&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(ctx, db, dialect{
		name:   "sqlite",
		schema: sqliteSchema,
		uniqueViolation: func(err error) bool {
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		},
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.logger.Info("store initialized", zap.String("path", dbPath))
	return store, nil
}
