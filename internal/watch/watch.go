// Package watch re-aggregates a sweep whenever its run directories change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/sweep"
)

const DefaultDebounce = 500 * time.Millisecond

// Handler receives the outcome of every aggregation. err is non-nil when
// the sweep as a whole could not be aggregated.
type Handler func(out *sweep.Outcome, err error)

// Watcher watches a sweep root, its run directories and their output
// directories. A burst of events triggers one aggregation once the sweep
// has been quiet for the debounce interval.
type Watcher struct {
	root     string
	opts     sweep.Options
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	fs *fsnotify.Watcher

	mu        sync.Mutex
	watched   map[string]bool
	dirty     bool
	lastEvent time.Time
}

// New creates a Watcher. Records are reused between aggregations through
// opts.Cache, which is created when nil.
func New(root string, opts sweep.Options, debounce time.Duration, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if opts.OutputDir == "" {
		opts.OutputDir = sweep.DefaultOutputDir
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		cache, err := sweep.NewRecordCache(sweep.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		opts.Cache = cache
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		opts:     opts,
		handler:  handler,
		debounce: debounce,
		logger:   opts.Logger.With(zap.String("root", root)),
		fs:       fs,
		watched:  map[string]bool{},
	}, nil
}

// Run aggregates the sweep once, then again after every quiet burst of
// changes, until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	if err := w.fs.Add(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.watched[w.root] = true
	w.addRuns()
	w.aggregate(ctx)

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-tick.C:
			if w.due() {
				w.addRuns()
				w.aggregate(ctx)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("change", zap.String("path", event.Name), zap.Stringer("op", event.Op))
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.add(event.Name)
			w.add(filepath.Join(event.Name, w.opts.OutputDir))
		}
	}
	w.mu.Lock()
	w.dirty = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) due() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty || time.Since(w.lastEvent) < w.debounce {
		return false
	}
	w.dirty = false
	return true
}

// addRuns watches run and output directories that appeared since the last
// pass. Directories created before their parent was watched produce no
// event, so this also runs before every aggregation.
func (w *Watcher) addRuns() {
	names, err := sweep.ListRunDirs(w.root)
	if err != nil {
		w.logger.Warn("listing runs", zap.Error(err))
		return
	}
	for _, name := range names {
		dir := filepath.Join(w.root, name)
		w.add(dir)
		w.add(filepath.Join(dir, w.opts.OutputDir))
	}
}

func (w *Watcher) add(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		// output directories often do not exist until the run starts writing
		w.logger.Debug("not watching", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.watched[dir] = true
}

func (w *Watcher) aggregate(ctx context.Context) {
	out, err := sweep.Aggregate(ctx, w.root, w.opts)
	if err != nil && ctx.Err() != nil {
		return
	}
	w.handler(out, err)
}
