// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Default query timeouts
const (
	// Simple queries (SELECT single row, INSERT, DELETE)
	defaultQueryTimeout = 5 * time.Second
	// Batch operations (storing a whole container, migrations)
	defaultBatchTimeout = 30 * time.Second
)

var ErrUnsupportedDriver = errors.New("db: unsupported driver")

type DB struct {
	pool   *sql.DB
	driver string
}

// sqlDriver maps config driver names to registered database/sql drivers.
func sqlDriver(driverName string) (string, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "mysql", "mariadb":
		return "mysql", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driverName)
}

func NewPool(driverName string, dataSourceName string, maxOpenConns int, maxIdleConns int) (DB, error) {
	var db DB

	driver, err := sqlDriver(driverName)
	if err != nil {
		return db, err
	}

	db.driver = driver
	db.pool, err = sql.Open(driver, dataSourceName)
	if err != nil {
		return db, err
	}

	// SQLite allows a single writer
	if driver == "sqlite" {
		maxOpenConns = 1
	}
	db.pool.SetMaxOpenConns(maxOpenConns)
	db.pool.SetMaxIdleConns(maxIdleConns)
	db.pool.SetConnMaxLifetime(time.Hour)
	db.pool.SetConnMaxIdleTime(10 * time.Minute)

	return db, nil
}

func (db DB) Close() error {
	return db.pool.Close()
}

func (db DB) Driver() string {
	return db.driver
}

func (db DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()
	return db.pool.PingContext(ctx)
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders for drivers that only know "?".
// Arguments must be passed in placeholder order.
func (db DB) rebind(query string) string {
	if db.driver != "mysql" {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?")
}

func (db DB) schema() []string {
	switch db.driver {
	case "mysql":
		return []string{
			`CREATE TABLE IF NOT EXISTS cache_containers (
				id          VARCHAR(64)  PRIMARY KEY,
				name        VARCHAR(255) NOT NULL,
				create_time BIGINT       NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS cache_entries (
				id            VARCHAR(64)  PRIMARY KEY,
				container_id  VARCHAR(64)  NOT NULL,
				req_key       TEXT         NOT NULL,
				url           TEXT         NOT NULL,
				status        INT          NOT NULL,
				header        LONGBLOB     NOT NULL,
				body          LONGBLOB     NOT NULL,
				body_encoding VARCHAR(16)  NOT NULL,
				body_size     BIGINT       NOT NULL,
				create_time   BIGINT       NOT NULL,
				INDEX cache_entries_container (container_id)
			)`,
		}

	case "pgx":
		return []string{
			`CREATE TABLE IF NOT EXISTS cache_containers (
				id          TEXT   PRIMARY KEY,
				name        TEXT   NOT NULL,
				create_time BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS cache_entries (
				id            TEXT    PRIMARY KEY,
				container_id  TEXT    NOT NULL,
				req_key       TEXT    NOT NULL,
				url           TEXT    NOT NULL,
				status        INTEGER NOT NULL,
				header        BYTEA   NOT NULL,
				body          BYTEA   NOT NULL,
				body_encoding TEXT    NOT NULL,
				body_size     BIGINT  NOT NULL,
				create_time   BIGINT  NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS cache_entries_container ON cache_entries (container_id)`,
		}

	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS cache_containers (
				id          TEXT    PRIMARY KEY,
				name        TEXT    NOT NULL,
				create_time INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS cache_entries (
				id            TEXT    PRIMARY KEY,
				container_id  TEXT    NOT NULL,
				req_key       TEXT    NOT NULL,
				url           TEXT    NOT NULL,
				status        INTEGER NOT NULL,
				header        BLOB    NOT NULL,
				body          BLOB    NOT NULL,
				body_encoding TEXT    NOT NULL,
				body_size     INTEGER NOT NULL,
				create_time   INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS cache_entries_container ON cache_entries (container_id)`,
		}
	}
}

// InitSchema creates the cache tables if they do not exist.
func (db DB) InitSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBatchTimeout)
	defer cancel()

	for _, stmt := range db.schema() {
		if _, err := db.pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: init schema: %w", err)
		}
	}
	return nil
}

// InitDB opens the database once and creates the schema.
func InitDB(driverName string, dataSourceName string) error {
	db, err := NewPool(driverName, dataSourceName, 1, 0)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.InitSchema(context.Background())
}
