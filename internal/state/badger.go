package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

const badgerKeyPrefix = "node/"

// BadgerConfig holds configuration for the Badger store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool
	// Logger receives Badger's internal warnings and errors. Nil disables them.
	Logger *zap.Logger
}

// Badger stores nodes as JSON values in an embedded BadgerDB.
type Badger struct {
	db *badger.DB
}

// badgerLogger adapts zap to BadgerDB's Logger interface.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// OpenBadger opens a Badger store, creating the directory if needed.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{s: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Ping reports whether the database is open.
func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return ctx.Err()
}

func badgerKey(key string) []byte {
	return []byte(badgerKeyPrefix + key)
}

// Upsert replaces or inserts the node stored under key.
func (b *Badger) Upsert(ctx context.Context, key string, node *models.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("encode node: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	return nil
}

// FindOne fetches the node stored under key.
func (b *Badger) FindOne(ctx context.Context, key string) (*models.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var node models.Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &node)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	node.ID = key
	return &node, nil
}

// UpdateField sets one field of an existing node inside a single transaction.
func (b *Badger) UpdateField(ctx context.Context, key, field string, value any) error {
	if err := checkField(field); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		var doc map[string]any
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return fmt.Errorf("decode node: %w", err)
		}
		doc[field] = value

		// Round-trip through the node type so a mistyped value is rejected.
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode node: %w", err)
		}
		var node models.Node
		if err := json.Unmarshal(raw, &node); err != nil {
			return fmt.Errorf("invalid value for %s: %w", field, err)
		}
		data, err := json.Marshal(&node)
		if err != nil {
			return fmt.Errorf("encode node: %w", err)
		}
		return txn.Set(badgerKey(key), data)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
