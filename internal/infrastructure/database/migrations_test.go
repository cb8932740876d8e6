package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

var testMigrationsFS = fstest.MapFS{
	"migrations/20260101_000000_create_test_nodes.up.sql": {
		Data: []byte("CREATE TABLE test_nodes (id INTEGER PRIMARY KEY, name TEXT);"),
	},
	"migrations/20260101_000000_create_test_nodes.down.sql": {
		Data: []byte("DROP TABLE test_nodes;"),
	},
	"migrations/20260102_000000_add_battery.up.sql": {
		Data: []byte("ALTER TABLE test_nodes ADD COLUMN battery INTEGER;"),
	},
	"migrations/README.md":       {Data: []byte("ignored")},
	"migrations/notes_draft.sql": {Data: []byte("ignored: no version")},
}

// useMigrations registers fsys for the duration of the test.
func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	orig := source
	Register(fsys, "migrations")
	t.Cleanup(func() { source = orig })
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_nodes") {
		t.Fatal("table test_nodes not created")
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO test_nodes (id, name, battery) VALUES (1, 'n', 90)"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 2 || len(status.Pending) != 0 {
		t.Errorf("status = %d applied, %d pending; want 2, 0", len(status.Applied), len(status.Pending))
	}
	if status.Applied[0].AppliedAt.IsZero() {
		t.Error("applied_at not recorded")
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureRollsBackOnlyThatMigration(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"migrations/20260101_000000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER);")},
		"migrations/20260102_000000_bad.up.sql":  {Data: []byte("CREATE TABLE bad (id INTEGER); SELECT * FROM missing_table;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() with a broken migration succeeded")
	}
	if !tableExists(t, db, "good") {
		t.Error("earlier migration was rolled back")
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 1 || len(status.Pending) != 1 || status.Pending[0].Name != "bad" {
		t.Errorf("status = %+v", status)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"migrations/20260101_000000_create_test_nodes.up.sql":   testMigrationsFS["migrations/20260101_000000_create_test_nodes.up.sql"],
		"migrations/20260101_000000_create_test_nodes.down.sql": testMigrationsFS["migrations/20260101_000000_create_test_nodes.down.sql"],
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_nodes") {
		t.Error("table test_nodes still exists after rollback")
	}

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 0 || len(status.Pending) != 1 {
		t.Errorf("status = %+v", status)
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history = %v", err)
	}
}

func TestMigrateDown_Errors(t *testing.T) {
	useMigrations(t, testMigrationsFS)
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Latest migration has no down file.
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() without down SQL succeeded")
	}

	// Latest migration missing from the filesystem.
	Register(fstest.MapFS{}, "migrations")
	if err := db.MigrateDown(ctx); !errors.Is(err, ErrMigrationNotFound) {
		t.Errorf("MigrateDown() error = %v, want ErrMigrationNotFound", err)
	}
}

func TestMigrate_NoSource(t *testing.T) {
	orig := source
	Register(nil, "")
	t.Cleanup(func() { source = orig })

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no source = %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	got, err := loadMigrations(testMigrationsFS, "migrations")
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d migrations, want 2", len(got))
	}
	first := got[0]
	if first.Version != "20260101_000000" || first.Name != "create_test_nodes" || first.DownSQL == "" {
		t.Errorf("first = %+v", first)
	}
	if got[1].Version != "20260102_000000" || got[1].DownSQL != "" {
		t.Errorf("second = %+v", got[1])
	}

	if got, err := loadMigrations(testMigrationsFS, "absent"); err != nil || got != nil {
		t.Errorf("missing dir = %v, %v; want nil, nil", got, err)
	}
}

func TestLoadMigrations_DownWithoutUp(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	}
	if _, err := loadMigrations(fsys, "m"); err == nil {
		t.Error("loadMigrations() accepted a down file without up")
	}
}

func TestMigrationFilePattern(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"20260301_000000_node_inventory.up.sql", true},
		{"20260301_000000_node_inventory.down.sql", true},
		{"20260301_000000_node_inventory.sql", false},
		{"2026_000000_short.up.sql", false},
		{"20260301_000000_.up.sql", false},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := migrationFile.MatchString(tt.name); got != tt.ok {
			t.Errorf("match(%q) = %v, want %v", tt.name, got, tt.ok)
		}
	}
}
