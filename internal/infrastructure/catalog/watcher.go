package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Store whenever its catalog file changes on disk
type Watcher struct {
	store    *Store
	debounce time.Duration
	log      *zap.Logger
}

// NewWatcher creates a watcher for store. A zero debounce uses 500ms.
func NewWatcher(store *Store, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		store:    store,
		debounce: debounce,
		log:      log,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file so that editors replacing the file by rename are
// picked up.
func (w *Watcher) Run(ctx context.Context) error {
	if w.store.Remote() {
		return fmt.Errorf("cannot watch remote catalog %s", w.store.Path())
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	target, err := filepath.Abs(w.store.Path())
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	w.log.Info("watching catalog for changes", zap.String("path", target))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event, target) {
				continue
			}
			w.log.Debug("catalog file event", zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("catalog watcher error", zap.Error(err))

		case <-timer.C:
			// Failure keeps the old catalog; Reload already logged it.
			_, _ = w.store.Reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
