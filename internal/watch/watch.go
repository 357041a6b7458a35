package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-tpltask/pkg/task"
)

const defaultDebounce = 200 * time.Millisecond

// Option customises a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits after the last change before
// re-running.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger routes watcher messages to logger.
func WithLogger(logger task.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithIgnore skips events under the given paths, typically the directories
// the run writes into.
func WithIgnore(paths ...string) Option {
	return func(w *Watcher) {
		for _, path := range paths {
			if path == "" {
				continue
			}
			if abs, err := filepath.Abs(path); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// Watcher re-runs a function whenever files under the watched paths change.
type Watcher struct {
	paths    []string
	run      func(context.Context) error
	debounce time.Duration
	logger   task.Logger
	ignore   []string
}

// New builds a Watcher over paths. Files are watched through their parent
// directory; directories are watched recursively.
func New(paths []string, run func(context.Context) error, options ...Option) (*Watcher, error) {
	if run == nil {
		return nil, errors.New("watch: run function is required")
	}
	w := &Watcher{
		run:      run,
		debounce: defaultDebounce,
		logger:   task.NopLogger(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(w)
	}

	seen := make(map[string]struct{})
	for _, path := range paths {
		dirs, err := watchDirs(path)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if _, ok := seen[dir]; ok {
				continue
			}
			seen[dir] = struct{}{}
			w.paths = append(w.paths, dir)
		}
	}
	if len(w.paths) == 0 {
		return nil, errors.New("watch: nothing to watch")
	}
	return w, nil
}

// Paths returns the directories being watched.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// Run calls run once, then again after every debounced batch of changes,
// until ctx is cancelled. Failures of run are logged and do not stop the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.paths {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add %q: %w", dir, err)
		}
	}

	w.trigger(ctx)

	// nil until a change arrives
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
				}
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			settle = time.After(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-settle:
			settle = nil
			w.trigger(ctx)
		}
	}
}

func (w *Watcher) trigger(ctx context.Context) {
	start := time.Now()
	if err := w.run(ctx); err != nil {
		w.logger.Error("run failed", "error", err)
		return
	}
	w.logger.Info("run finished", "took", time.Since(start).Round(time.Millisecond))
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	for _, dir := range w.ignore {
		if event.Name == dir || strings.HasPrefix(event.Name, dir+string(filepath.Separator)) {
			return false
		}
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// watchDirs returns the directories to register for path: its parent when it
// is a file, or the directory and every subdirectory.
func watchDirs(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{filepath.Dir(abs)}, nil
		}
		return nil, fmt.Errorf("watch: stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return []string{filepath.Dir(abs)}, nil
	}

	var dirs []string
	err = filepath.WalkDir(abs, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch: walk %q: %w", path, err)
	}
	return dirs, nil
}
