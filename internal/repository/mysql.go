package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sku VARCHAR(64) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		category VARCHAR(128) NOT NULL,
		unit VARCHAR(32) NOT NULL DEFAULT '',
		unit_price DECIMAL(14,2) NOT NULL DEFAULT 0,
		current_qty INT NOT NULL CHECK (current_qty >= 0),
		min_qty INT NOT NULL CHECK (min_qty >= 0),
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS material_requests (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		item_id BIGINT NULL,
		proposed_name VARCHAR(255) NULL,
		proposed_category VARCHAR(128) NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price DECIMAL(14,2) NOT NULL DEFAULT 0,
		observation TEXT NOT NULL,
		requester_id BIGINT NOT NULL,
		requester_name VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		rejection_reason TEXT NULL,
		reviewed_by_id BIGINT NOT NULL DEFAULT 0,
		reviewed_by_name VARCHAR(255) NOT NULL DEFAULT '',
		version INT NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_requests_requester (requester_id),
		INDEX idx_requests_created_at (created_at),
		FOREIGN KEY (item_id) REFERENCES inventory_items(id),
		CHECK ((item_id IS NULL) <> (proposed_name IS NULL))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		created_at DATETIME(6) NOT NULL,
		user_id BIGINT NOT NULL,
		user_name VARCHAR(255) NOT NULL DEFAULT '',
		action VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		INDEX idx_audit_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		role VARCHAR(16) NOT NULL,
		department VARCHAR(128) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// MySQLDSN builds a DSN with the options the store relies on: parsed UTC
// times and matched (not changed) row counts.
func MySQLDSN(user, password, host string, port int, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// NewMySQLStore connects to MySQL and creates the tables.
func NewMySQLStore(ctx context.Context, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(ctx, db, dialect{
		name:   "mysql",
		schema: mysqlSchema,
		uniqueViolation: func(err error) bool {
			var myErr *mysql.MySQLError
			return errors.As(err, &myErr) && myErr.Number == 1062
		},
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.logger.Info("store initialized")
	return store, nil
}
