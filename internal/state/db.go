package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

// DB wraps an SQLite database connection holding the node table.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenSQLite opens an SQLite database at the given path with the named
// database/sql driver ("sqlite" or "sqlite3").
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func OpenSQLite(path, driver string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Nodes},
		{2, migrationV2NodeIndexes},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Nodes = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	objective TEXT NOT NULL DEFAULT '',
	solution TEXT NOT NULL DEFAULT '',
	problem TEXT NOT NULL DEFAULT '',
	follow_up_question TEXT,
	created_at TEXT NOT NULL,
	parent_id TEXT,
	metadata TEXT,
	priority INTEGER NOT NULL DEFAULT 0
);
`

const migrationV2NodeIndexes = `
CREATE INDEX IF NOT EXISTS idx_nodes_parent_id ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_created_at ON nodes(created_at);
`

// Upsert replaces or inserts the node stored under key.
func (db *DB) Upsert(ctx context.Context, key string, node *models.Node) error {
	meta, err := encodeMetadata(node.Metadata)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO nodes (id, title, description, objective, solution, problem,
			follow_up_question, created_at, parent_id, metadata, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			objective = excluded.objective,
			solution = excluded.solution,
			problem = excluded.problem,
			follow_up_question = excluded.follow_up_question,
			created_at = excluded.created_at,
			parent_id = excluded.parent_id,
			metadata = excluded.metadata,
			priority = excluded.priority
	`, key, node.Title, node.Description, node.Objective, node.Solution, node.Problem,
		nullString(node.FollowUpQuestion), formatTime(node.CreatedAt),
		nullString(node.ParentID), meta, node.Priority)
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

// FindOne fetches the node stored under key.
func (db *DB) FindOne(ctx context.Context, key string) (*models.Node, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, description, objective, solution, problem,
			follow_up_question, created_at, parent_id, metadata, priority
		FROM nodes WHERE id = ?
	`, key)

	var (
		n         models.Node
		followUp  sql.NullString
		createdAt string
		parentID  sql.NullString
		meta      sql.NullString
	)
	err := row.Scan(&n.ID, &n.Title, &n.Description, &n.Objective, &n.Solution, &n.Problem,
		&followUp, &createdAt, &parentID, &meta, &n.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	n.FollowUpQuestion = fromNullString(followUp)
	n.ParentID = fromNullString(parentID)
	if n.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateField sets one column of an existing node.
func (db *DB) UpdateField(ctx context.Context, key, field string, value any) error {
	if err := checkField(field); err != nil {
		return err
	}
	value, err := columnValue(field, value)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	// The column name comes from nodeColumns, never from the caller.
	query := fmt.Sprintf("UPDATE nodes SET %s = ? WHERE id = ?", nodeColumns[field])
	result, err := db.conn.ExecContext(ctx, query, value, key)
	if err != nil {
		return fmt.Errorf("update node %s: %w", field, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// columnValue converts a field value into its column representation.
func columnValue(field string, value any) (any, error) {
	switch field {
	case "metadata":
		m, ok := value.(map[string]any)
		if !ok && value != nil {
			return nil, fmt.Errorf("metadata must be a map, got %T", value)
		}
		return encodeMetadata(m)
	case "createdAt":
		t, ok := value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("createdAt must be a time, got %T", value)
		}
		return formatTime(t), nil
	case "followUpQuestion", "parentId":
		if s, ok := value.(*string); ok {
			return nullString(s), nil
		}
	}
	return value, nil
}

func encodeMetadata(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
