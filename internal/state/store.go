// Package state provides the persistent node stores used by the history tree.
// It ships an SQLite store (the default, at ~/.local/share/nodetree/nodetree.db),
// an embedded Badger store and a MongoDB store.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownField is returned by UpdateField for a field the node does not have.
	ErrUnknownField = errors.New("unknown node field")
	// ErrImmutableField is returned by UpdateField for the primary key.
	ErrImmutableField = errors.New("node field is immutable")
)

// Backend is a key-addressed store of nodes. Keys are canonical node IDs.
// Implementations must be safe for concurrent use; concurrent writes to the
// same key are last-writer-wins.
type Backend interface {
	io.Closer
	// Upsert replaces or inserts the record stored under key.
	Upsert(ctx context.Context, key string, node *models.Node) error
	// FindOne fetches the record stored under key, or ErrNotFound.
	FindOne(ctx context.Context, key string) (*models.Node, error)
	// UpdateField sets one field, named by its JSON wire name, on an existing
	// record. Missing records yield ErrNotFound.
	UpdateField(ctx context.Context, key, field string, value any) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// Driver names a backend implementation.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
	DriverBadger  = "badger"
	DriverMongo   = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Driver string
	// Path is the SQLite file or Badger directory. Empty uses DefaultPath.
	Path string
	// InMemory opens Badger without touching disk.
	InMemory bool
	// URI, Database and Collection configure the MongoDB store.
	URI        string
	Database   string
	Collection string
}

// DataDir returns the nodetree data directory.
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "nodetree")
}

// DefaultPath returns the default location of the store for a driver.
func DefaultPath(driver string) string {
	if driver == DriverBadger {
		return filepath.Join(DataDir(), "badger")
	}
	return filepath.Join(DataDir(), "nodetree.db")
}

// Open opens the backend named by cfg.Driver. The caller owns the returned
// backend and must Close it.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath(driver)
	}

	switch driver {
	case DriverSQLite, DriverSQLite3:
		db, err := OpenSQLite(path, driver)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case DriverBadger:
		db, err := OpenBadger(BadgerConfig{Path: path, InMemory: cfg.InMemory, Logger: logger})
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverMongo:
		db, err := OpenMongo(ctx, MongoConfig{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection})
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// checkField validates a field name for UpdateField.
func checkField(field string) error {
	if field == "id" {
		return fmt.Errorf("%w: %s", ErrImmutableField, field)
	}
	if _, ok := nodeColumns[field]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// nodeColumns maps node JSON field names to SQLite column names.
var nodeColumns = map[string]string{
	"id":               "id",
	"title":            "title",
	"description":      "description",
	"objective":        "objective",
	"solution":         "solution",
	"problem":          "problem",
	"followUpQuestion": "follow_up_question",
	"createdAt":        "created_at",
	"parentId":         "parent_id",
	"metadata":         "metadata",
	"priority":         "priority",
}

// Compile-time verification that every store implements Backend.
var (
	_ Backend = (*DB)(nil)
	_ Backend = (*Badger)(nil)
	_ Backend = (*Mongo)(nil)
)
