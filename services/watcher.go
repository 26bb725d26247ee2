package services

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"sonora/logger"
)

// LibraryWatcher watches the music root for filesystem changes and triggers a
// rescan after a quiet period, so a burst of copies results in one scan.
type LibraryWatcher struct {
	library  *LibraryManager
	debounce time.Duration
}

// NewLibraryWatcher creates a watcher bound to a library manager.
func NewLibraryWatcher(library *LibraryManager, debounce time.Duration) *LibraryWatcher {
	return &LibraryWatcher{library: library, debounce: debounce}
}

// Run watches until ctx is cancelled. Watch setup failures are logged and
// disable watching without affecting the rest of the server.
func (w *LibraryWatcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("filesystem watcher unavailable", logger.ErrorField(err))
		return
	}
	defer watcher.Close()

	root := w.library.MusicRoot()
	w.addRecursive(watcher, root)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			// New directories need their own watches.
			if event.Op&fsnotify.Create != 0 {
				w.addRecursive(watcher, event.Name)
			}

			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", logger.ErrorField(err))

		case <-fire:
			timer = nil
			logger.Info("filesystem change detected, rescanning")
			w.library.Scan()
		}
	}
}

// addRecursive registers watches for path and any subdirectories, skipping
// hidden segments like the scanner does.
func (w *LibraryWatcher) addRecursive(watcher *fsnotify.Watcher, path string) {
	filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				logger.Debug("watch add failed", logger.String("path", p), logger.ErrorField(err))
			}
		}
		return nil
	})
}
