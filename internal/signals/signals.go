// Package signals lets another process stop a running round by touching a
// file under the data directory.
package signals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// StopFile is the name of the stop signal file.
const StopFile = "stop"

// Watcher watches <dir>/signals for the stop file.
type Watcher struct {
	dir    string
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// New creates the signals directory under dataDir and starts watching it.
// When fsnotify is unavailable the watcher still works through ShouldStop,
// which checks the file directly.
func New(dataDir string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(dataDir, "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals dir: %w", err)
	}

	w := &Watcher{
		dir:    dir,
		logger: logger.Named("signals"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("file watcher unavailable, falling back to polling", zap.Error(err))
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		w.logger.Warn("cannot watch signals dir, falling back to polling", zap.String("dir", dir), zap.Error(err))
		return w, nil
	}
	w.watcher = fw

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == StopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.logger.Info("stop signal received", zap.String("file", event.Name))
				w.markStopped()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Stopped returns a channel closed once a stop signal arrives.
func (w *Watcher) Stopped() <-chan struct{} {
	return w.stopCh
}

// ShouldStop reports whether a stop signal has been received. It also checks
// the file directly in case the watcher missed it.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, StopFile)); err == nil {
		w.markStopped()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// SendStop creates the stop file.
func (w *Watcher) SendStop() error {
	path := filepath.Join(w.dir, StopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes a stale stop file. Call it before starting a round.
func (w *Watcher) Clear() error {
	err := os.Remove(filepath.Join(w.dir, StopFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Bind returns a context cancelled when ctx is or when a stop signal arrives.
// A poll interval above zero also checks the file periodically.
func (w *Watcher) Bind(ctx context.Context, poll time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)

	var tick <-chan time.Time
	var ticker *time.Ticker
	if poll > 0 {
		ticker = time.NewTicker(poll)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				cancel(ErrStopped)
				return
			case <-tick:
				if w.ShouldStop() {
					cancel(ErrStopped)
					return
				}
			}
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}
