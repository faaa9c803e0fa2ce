// internal/storage/db.go

// Package storage persists the selector cache and undelivered batches in a SQL
// database. SQLite, PostgreSQL and MySQL are supported.
package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/FeedScrapexter/internal/utils"
)

// ErrUnknownDriver is returned for drivers other than sqlite3, postgres and mysql.
var ErrUnknownDriver = stderrors.New("unknown database driver")

type dialect struct {
	driver      string
	textType    string
	keyType     string
	upsertCache string
	insertBatch string
}

var dialects = map[string]dialect{
	"sqlite3": {
		driver:   "sqlite3",
		textType: "TEXT",
		keyType:  "TEXT",
		upsertCache: `INSERT INTO selector_cache (cache_key, selector_query, saved_at) VALUES (?, ?, ?)
			ON CONFLICT (cache_key) DO UPDATE SET selector_query = excluded.selector_query, saved_at = excluded.saved_at`,
		insertBatch: `INSERT INTO pending_batches (batch_id, payload, created_at, attempts) VALUES (?, ?, ?, 0)
			ON CONFLICT (batch_id) DO NOTHING`,
	},
	"postgres": {
		driver:   "postgres",
		textType: "TEXT",
		keyType:  "VARCHAR(191)",
		upsertCache: `INSERT INTO selector_cache (cache_key, selector_query, saved_at) VALUES (?, ?, ?)
			ON CONFLICT (cache_key) DO UPDATE SET selector_query = EXCLUDED.selector_query, saved_at = EXCLUDED.saved_at`,
		insertBatch: `INSERT INTO pending_batches (batch_id, payload, created_at, attempts) VALUES (?, ?, ?, 0)
			ON CONFLICT (batch_id) DO NOTHING`,
	},
	"mysql": {
		driver:   "mysql",
		textType: "LONGTEXT",
		keyType:  "VARCHAR(191)",
		upsertCache: `INSERT INTO selector_cache (cache_key, selector_query, saved_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE selector_query = VALUES(selector_query), saved_at = VALUES(saved_at)`,
		insertBatch: `INSERT IGNORE INTO pending_batches (batch_id, payload, created_at, attempts) VALUES (?, ?, ?, 0)`,
	},
}

// NormalizeDriver maps driver aliases to database/sql driver names.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	case "mysql", "mariadb":
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// DB is a migrated database handle shared by SQLStore and Outbox.
type DB struct {
	db      *sql.DB
	dialect dialect
	logger  utils.Logger
}

// Open connects, applies the schema and returns the handle.
// For sqlite3 the DSN is a file path; the parent directory is created.
func Open(ctx context.Context, driver, dsn string, logger utils.Logger) (*DB, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database DSN is required for driver %s", name)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	if name == "sqlite3" {
		dsn, err = sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	sqlDB, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", name, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", name, err)
	}
	if name == "sqlite3" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	d := &DB{db: sqlDB, dialect: dialects[name], logger: logger.WithField("component", "storage")}
	if err := d.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	d.logger.WithField("driver", name).Debug("database ready")
	return d, nil
}

func sqliteDSN(dsn string) (string, error) {
	path := dsn
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		path = dsn[:i]
	} else {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	path = strings.TrimPrefix(path, "file:")
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	return dsn, nil
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS selector_cache (
			cache_key %s PRIMARY KEY,
			selector_query %s NOT NULL,
			saved_at BIGINT NOT NULL
		)`, d.dialect.keyType, d.dialect.textType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS pending_batches (
			batch_id %s PRIMARY KEY,
			payload %s NOT NULL,
			created_at BIGINT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0
		)`, d.dialect.keyType, d.dialect.textType),
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the driver's syntax.
func (d *DB) rebind(query string) string {
	return rebind(d.dialect.driver, query)
}

func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

// Driver returns the database/sql driver name.
func (d *DB) Driver() string {
	return d.dialect.driver
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}
