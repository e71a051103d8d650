// Package watcher reloads files when they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"gridscope/internal/scheduler"
)

// DefaultDebounce is how long a file must be quiet before onChange runs
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	clock    scheduler.Clock
	log      *slog.Logger
}

// New creates a new file watcher
func New(path string, onChange func()) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: DefaultDebounce,
		clock:    scheduler.RealClock{},
		log:      slog.Default(),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	w.log = l
	return w
}

// Watch starts watching the file for changes.
// It blocks until the context is cancelled or an error occurs.
func (w *Watcher) Watch(ctx context.Context) error {
	return watch(ctx, []string{w.path}, w.debounce, w.clock, w.log, func(string) { w.onChange() })
}

// WatchMultiple watches multiple files and calls onChange with the path of
// whichever changed
func WatchMultiple(ctx context.Context, paths []string, debounce time.Duration, onChange func(path string)) error {
	return watch(ctx, paths, debounce, scheduler.RealClock{}, slog.Default(), onChange)
}

func watch(ctx context.Context, paths []string, debounce time.Duration, clock scheduler.Clock, log *slog.Logger, onChange func(string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directories containing the files.
	// This handles cases where the file is replaced (e.g., by editors)
	watchedDirs := make(map[string]bool)
	debouncers := make(map[string]*scheduler.Debouncer)

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := fw.Add(dir); err != nil {
				log.Warn("failed to watch directory", "dir", dir, "err", err)
				continue
			}
			watchedDirs[dir] = true
		}

		debouncers[absPath] = scheduler.NewDebouncer(clock, debounce, nil)
		log.Info("watching for changes", "path", absPath)
	}

	defer func() {
		for _, d := range debouncers {
			d.Cancel()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}

			d, watched := debouncers[absPath]
			if !watched {
				continue
			}

			// Handle write or create events
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				d.Trigger(func() {
					log.Info("file changed", "path", absPath)
					onChange(absPath)
				})
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)

		case <-ctx.Done():
			return nil
		}
	}
}
