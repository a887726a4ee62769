package document

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports edits to a single file.
type Watcher struct {
	path string
	w    *fsnotify.Watcher
}

// Watch starts watching path. The parent directory is watched so editors
// that replace the file on save are still seen.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("error watching %s: %w", filepath.Dir(abs), err)
	}
	log.Debug("Watching file", "path", abs)
	return &Watcher{path: abs, w: w}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Wait blocks until the file is written or created, the watcher is
// closed, or ctx is done. It reports whether a change was seen.
func (w *Watcher) Wait(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-w.w.Events:
			if !ok {
				return false
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("File changed", "path", event.Name, "op", event.Op)
			return true
		case err, ok := <-w.w.Errors:
			if !ok {
				return false
			}
			log.Debug("Watcher error", "path", w.path, "err", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.w.Close()
}
