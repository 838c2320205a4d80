package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(tempDBPath(t), DriverSQLite)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpenSQLite(t *testing.T) {
	path := tempDBPath(t)
	db, err := OpenSQLite(path, "")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpenSQLite_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := OpenSQLite(path, DriverSQLite)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	// On Linux, we can't create files under /proc
	_, err := OpenSQLite("/proc/nonexistent/test.db", DriverSQLite)
	if err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestClose(t *testing.T) {
	db, err := OpenSQLite(tempDBPath(t), DriverSQLite)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if err := db.Ping(context.Background()); err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	tables := []string{"schema_version", "nodes"}
	for _, table := range tables {
		var count int
		row := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}

	var indexes int
	row := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name LIKE 'idx_nodes_%'")
	if err := row.Scan(&indexes); err != nil {
		t.Fatalf("failed to count indexes: %v", err)
	}
	if indexes != 2 {
		t.Errorf("node indexes = %d, want 2", indexes)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := OpenSQLite(tempDBPath(t), DriverSQLite)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	row := db.conn.QueryRow("SELECT MAX(version) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestUpdateField_UnknownColumn(t *testing.T) {
	db := setupTestDB(t)

	// Unknown names never reach the SQL text.
	err := db.UpdateField(context.Background(), "x", "priority = 1; DROP TABLE nodes; --", 1)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name='nodes'").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 {
		t.Error("nodes table was dropped")
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	sqliteStore, err := Open(ctx, Config{Driver: "SQLite", Path: tempDBPath(t)}, nil)
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer sqliteStore.Close()
	if _, ok := sqliteStore.(*DB); !ok {
		t.Errorf("Open sqlite returned %T", sqliteStore)
	}

	badgerStore, err := Open(ctx, Config{Driver: DriverBadger, InMemory: true}, nil)
	if err != nil {
		t.Fatalf("Open badger failed: %v", err)
	}
	defer badgerStore.Close()
	if _, ok := badgerStore.(*Badger); !ok {
		t.Errorf("Open badger returned %T", badgerStore)
	}

	if _, err := Open(ctx, Config{Driver: "postgres"}, nil); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultPath(DriverSQLite); got != "/data/nodetree/nodetree.db" {
		t.Errorf("DefaultPath(sqlite) = %q", got)
	}
	if got := DefaultPath(DriverBadger); got != "/data/nodetree/badger" {
		t.Errorf("DefaultPath(badger) = %q", got)
	}
}
