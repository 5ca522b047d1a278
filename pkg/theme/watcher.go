package theme

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler receives the freshly loaded theme after the file changes.
type ReloadHandler func(*Theme)

// Watcher hot-reloads a theme file. Editors often emit several write events
// per save, so reloads are debounced.
type Watcher struct {
	path     string
	debounce time.Duration
	handler  ReloadHandler
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for the given theme file.
func NewWatcher(path string, debounce time.Duration, handler ReloadHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		handler:  handler,
		watcher:  fsw,
	}, nil
}

// Watch processes file events until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are transient; the next save retriggers.
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		t, err := Load(w.path)
		if err != nil {
			return
		}
		if w.handler != nil {
			w.handler(t)
		}
	})
}

// Close stops watching and cancels a pending reload.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
