// Package history maintains the parent-linked tree of solved nodes on top of a
// state.Backend.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/nodetree/internal/state"
	"github.com/ShayCichocki/nodetree/pkg/models"
)

// MaxAncestorDepth bounds how many hops Ancestors follows.
const MaxAncestorDepth = 64

// ErrNotFound is returned when an id does not resolve to a stored node.
var ErrNotFound = errors.New("node not found")

// PersistenceError reports a store write that did not go through.
type PersistenceError struct {
	ID  string
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s node %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Tree is the history tree store.
type Tree struct {
	backend state.Backend
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a tree over backend. The tree does not own the backend.
func New(backend state.Backend, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		backend: backend,
		logger:  logger.Named("history"),
		now:     time.Now,
	}
}

// Ping checks that the underlying store is reachable.
func (t *Tree) Ping(ctx context.Context) error {
	return t.backend.Ping(ctx)
}

// Upsert stores node, assigning an id and creation time when missing, and
// returns the canonical id. node is updated in place with the canonical
// values that were written.
func (t *Tree) Upsert(ctx context.Context, node *models.Node) (string, error) {
	if node == nil {
		return "", &PersistenceError{Op: "upsert", Err: errors.New("nil node")}
	}
	if node.ID == "" {
		node.ID = models.NewID()
	}
	id, err := models.CanonicalID(node.ID)
	if err != nil {
		return "", &PersistenceError{ID: node.ID, Op: "upsert", Err: err}
	}
	node.ID = id

	if !node.IsRoot() {
		parent, err := models.CanonicalID(*node.ParentID)
		if err != nil {
			return "", &PersistenceError{ID: id, Op: "upsert", Err: fmt.Errorf("parent: %w", err)}
		}
		node.ParentID = &parent
	} else {
		node.ParentID = nil
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = t.now().UTC()
	}

	if err := t.backend.Upsert(ctx, id, node); err != nil {
		t.logger.Error("node not saved", zap.String("id", id), zap.Error(err))
		return "", &PersistenceError{ID: id, Op: "upsert", Err: err}
	}
	t.logger.Debug("node saved", zap.String("id", id))
	return id, nil
}

// Get fetches one node by id.
func (t *Tree) Get(ctx context.Context, id string) (*models.Node, error) {
	key, err := models.CanonicalID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	node, err := t.backend.FindOne(ctx, key)
	if errors.Is(err, state.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", key, err)
	}
	node.ID = key
	return node, nil
}

// Ancestors walks parent pointers upward from startID, inclusive, and returns
// the chain ordered by priority descending. Equal priorities read root-first.
//
// The walk stops at a root, a lookup miss, a malformed id, a revisited id or
// after MaxAncestorDepth hops, returning what it collected so far. It never
// fails; problems are logged.
func (t *Tree) Ancestors(ctx context.Context, startID string) []*models.Node {
	type entry struct {
		node *models.Node
		seq  int
	}

	var chain []entry
	seen := make(map[string]bool)
	current := startID

	for current != "" && len(chain) < MaxAncestorDepth {
		if ctx.Err() != nil {
			break
		}
		key, err := models.CanonicalID(current)
		if err != nil {
			t.logger.Warn("ancestor walk stopped at malformed id", zap.String("id", current), zap.Error(err))
			break
		}
		if seen[key] {
			t.logger.Warn("ancestor walk found a cycle", zap.String("id", key))
			break
		}
		seen[key] = true

		node, err := t.backend.FindOne(ctx, key)
		if err != nil {
			if !errors.Is(err, state.ErrNotFound) {
				t.logger.Warn("ancestor lookup failed", zap.String("id", key), zap.Error(err))
			}
			break
		}
		node.ID = key
		chain = append(chain, entry{node: node, seq: len(chain)})

		if node.IsRoot() {
			break
		}
		current = *node.ParentID
	}

	// seq counts hops from startID, so a larger seq is closer to the root.
	sort.SliceStable(chain, func(i, j int) bool {
		if chain[i].node.Priority != chain[j].node.Priority {
			return chain[i].node.Priority > chain[j].node.Priority
		}
		return chain[i].seq > chain[j].seq
	})

	out := make([]*models.Node, len(chain))
	for i, e := range chain {
		out[i] = e.node
	}
	return out
}

// SetPriority updates only the priority of a node and returns the refreshed
// node.
func (t *Tree) SetPriority(ctx context.Context, id string, priority int) (*models.Node, error) {
	key, err := models.CanonicalID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	err = t.backend.UpdateField(ctx, key, "priority", priority)
	if errors.Is(err, state.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{ID: key, Op: "set priority", Err: err}
	}
	t.logger.Info("priority updated", zap.String("id", key), zap.Int("priority", priority))
	return t.Get(ctx, key)
}
