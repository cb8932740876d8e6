package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/sensor-net-proxy/internal/infrastructure/config"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600

	// pingTimeout bounds the connectivity check in Open.
	pingTimeout = 5 * time.Second

	connMaxIdleTime = 30 * time.Minute
)

// DB is the SQLite handle holding the node inventory.
// The embedded *sql.DB is used directly by repositories.
type DB struct {
	*sql.DB
	path string
}

// Config contains database options.
type Config struct {
	// Path is the database file. Its directory is created if missing.
	Path string

	// WALMode lets status readers run while the event loop writes.
	WALMode bool

	// BusyTimeout is how long a writer waits for the lock, in seconds.
	BusyTimeout int
}

// ConfigFrom maps the database section of config.yaml to Open's options.
func ConfigFrom(cfg config.DatabaseConfig) Config {
	return Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	}
}

// dsn builds the go-sqlite3 connection string.
// See: https://github.com/mattn/go-sqlite3#connection-string
func (c Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	if c.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + c.Path + "?" + q.Encode()
}

// Open opens (creating if needed) the SQLite database at cfg.Path and
// verifies it answers a ping.
//
// Parameters:
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected database
//   - error: If the directory, file or connection cannot be set up
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer and the inventory is
	// written from one goroutine.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file exists once the ping has opened it.
	if err := os.Chmod(cfg.Path, filePermissions); err != nil && !os.IsNotExist(err) {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("restricting database permissions: %w", err)
	}

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close closes the database. Safe to call on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics for the metrics endpoint.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// inTx runs fn in a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
