package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"
)

// migrationFile matches YYYYMMDD_HHMMSS_description.(up|down).sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// ErrMigrationNotFound is returned by MigrateDown when the latest applied
// version has no file.
var ErrMigrationNotFound = errors.New("migration not found")

// source is the registered migration filesystem. A nil fsys means there
// is nothing to apply.
var source struct {
	fsys fs.FS
	dir  string
}

// Register sets the filesystem and directory migrations are read from.
// The top-level migrations package calls it from init.
func Register(fsys fs.FS, dir string) {
	source.fsys = fsys
	source.dir = dir
}

// Migration is one schema change.
type Migration struct {
	// Version is the YYYYMMDD_HHMMSS filename prefix.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// MigrationStatus lists applied and pending migrations.
type MigrationStatus struct {
	Applied []MigrationRecord
	Pending []Migration
}

// Migrate applies every pending migration, oldest first.
//
// Each migration runs in its own transaction. A failure rolls back that
// migration only; earlier ones stay applied and a later Migrate resumes
// from the failed one.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: The first failing migration, wrapped with its version
func (db *DB) Migrate(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range status.Pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. It is a
// no-op when nothing is applied.
func (db *DB) MigrateDown(ctx context.Context) error {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	if len(status.Applied) == 0 {
		return nil
	}
	latest := status.Applied[len(status.Applied)-1].Version

	all, err := loadMigrations(source.fsys, source.dir)
	if err != nil {
		return err
	}
	i := sort.Search(len(all), func(i int) bool { return all[i].Version >= latest })
	if i == len(all) || all[i].Version != latest {
		return fmt.Errorf("%w: %s", ErrMigrationNotFound, latest)
	}
	m := all[i]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", m.Version)
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// MigrationStatus returns the applied migrations and those still pending.
// It creates the schema_migrations table on first use.
func (db *DB) MigrationStatus(ctx context.Context) (MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}

	all, err := loadMigrations(source.fsys, source.dir)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, r := range applied {
		done[r.Version] = struct{}{}
	}

	status := MigrationStatus{Applied: applied}
	for _, m := range all {
		if _, ok := done[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by Migrate
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

// loadMigrations reads the migrations in dir, sorted by version. Files
// that do not match the naming scheme are ignored; a down file without an
// up file is an error.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		parts := migrationFile.FindStringSubmatch(e.Name())
		if parts == nil {
			continue
		}
		version, name, direction := parts[1], parts[2], parts[3]

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
