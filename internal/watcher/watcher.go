// Package watcher observes one directory for newly created image files and
// forwards their paths to a channel.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// IdleInterval is how often an active watch checks that its directory still exists.
const IdleInterval = time.Second

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// IsImagePath reports whether path carries one of the watched image suffixes.
func IsImagePath(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

type watch struct {
	dir    string
	cancel context.CancelFunc
	done   chan struct{}
}

// Watcher keeps at most one directory watch alive at a time.
type Watcher struct {
	sink   chan<- string
	logger *zap.Logger
	idle   time.Duration

	mu      sync.Mutex
	current *watch
}

func New(sink chan<- string, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{sink: sink, logger: logger.With(zap.String("component", "watcher")), idle: IdleInterval}
}

// Start stops and joins any previous watch, then begins watching dir.
func (w *Watcher) Start(dir string) error {
	const op = "watcher.Start"

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("%s: directory required", op)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %s is not a directory", op, dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cur := &watch{dir: dir, cancel: cancel, done: make(chan struct{})}
	w.current = cur
	go w.run(ctx, fw, cur)

	w.logger.Info("watching folder", zap.String("dir", dir))
	return nil
}

// Stop ends the active watch, if any, and waits for its goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Dir returns the watched directory, or "" when no watch is active.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ""
	}
	select {
	case <-w.current.done:
		return ""
	default:
		return w.current.dir
	}
}

func (w *Watcher) stopLocked() {
	if w.current == nil {
		return
	}
	w.current.cancel()
	<-w.current.done
	w.logger.Info("stopped watching folder", zap.String("dir", w.current.dir))
	w.current = nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, cur *watch) {
	defer close(cur.done)
	defer fw.Close()

	ticker := time.NewTicker(w.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) || !IsImagePath(ev.Name) {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				continue
			}
			w.logger.Info("new image detected", zap.String("path", ev.Name))
			select {
			case w.sink <- ev.Name:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch failed, stopping", zap.String("dir", cur.dir), zap.Error(err))
			return
		case <-ticker.C:
			if _, err := os.Stat(cur.dir); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					err = fmt.Errorf("directory removed: %w", err)
				}
				w.logger.Error("watch failed, stopping", zap.String("dir", cur.dir), zap.Error(err))
				return
			}
		}
	}
}
