// Package sweep discovers the runs of a parameter sweep, extracts a record
// per run and pivots them into per-metric results.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/runner"
)

// Options configures Aggregate.
type Options struct {
	RunOptions
	// Workers bounds how many runs are extracted at once.
	Workers int
	Logger  *zap.Logger
	// Cache, when set, is consulted before extracting a run.
	Cache *RecordCache
}

// RunError is the failure of one run's extraction.
type RunError struct {
	Dir string
	ID  result.RunID
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %d (%s): %v", e.ID, e.Dir, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Failure is a run directory left out of the results.
type Failure struct {
	Dir string
	Err error
}

// Outcome is the result of aggregating one sweep.
type Outcome struct {
	Root     string
	Results  *result.Sweep
	Dirs     map[result.RunID]string
	Failures []Failure
}

// ListRunDirs returns the names of the immediate subdirectories of root.
func ListRunDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing sweep root: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

// Aggregate builds a record for every run directory under root and pivots
// them. Runs that fail are excluded from the results and listed in
// Outcome.Failures; two directories with the same run id abort the sweep.
func Aggregate(ctx context.Context, root string, opts Options) (*Outcome, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	names, err := ListRunDirs(root)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := &Outcome{Root: root, Dirs: map[result.RunID]string{}}
	for _, name := range names {
		id, err := ParseRunID(name)
		if err != nil {
			out.Failures = append(out.Failures, Failure{Dir: filepath.Join(root, name), Err: err})
			continue
		}
		dir := filepath.Join(root, name)
		if prev, dup := out.Dirs[id]; dup {
			return nil, &DuplicateRunIDError{ID: id, Dirs: []string{prev, dir}}
		}
		out.Dirs[id] = dir
	}

	var (
		mu      sync.Mutex
		records = make(map[result.RunID]*result.RunRecord, len(out.Dirs))
		jobs    = make([]runner.Job, 0, len(out.Dirs))
	)
	for id, dir := range out.Dirs {
		jobs = append(jobs, func() error {
			rec, err := buildCached(dir, opts)
			if err != nil {
				return &RunError{Dir: dir, ID: id, Err: err}
			}
			log.Debug("run extracted", zap.Int("run", int(id)), zap.String("dir", dir))
			mu.Lock()
			records[id] = rec
			mu.Unlock()
			return nil
		})
	}

	errs, err := runner.RunPoolContext(ctx, opts.Workers, jobs)
	if err != nil {
		return nil, err
	}
	for _, err := range errs {
		var re *RunError
		if !errors.As(err, &re) {
			return nil, err
		}
		out.Failures = append(out.Failures, Failure{Dir: re.Dir, Err: re})
		delete(out.Dirs, re.ID)
	}
	sort.Slice(out.Failures, func(i, j int) bool { return out.Failures[i].Dir < out.Failures[j].Dir })
	for _, f := range out.Failures {
		log.Warn("run excluded from sweep", zap.String("dir", f.Dir), zap.Error(f.Err))
	}

	out.Results = result.Pivot(records)
	log.Info("sweep aggregated",
		zap.String("root", root),
		zap.Int("runs", out.Results.Len()),
		zap.Int("failures", len(out.Failures)))
	return out, nil
}

func buildCached(dir string, opts Options) (*result.RunRecord, error) {
	if opts.Cache == nil {
		return BuildRun(dir, opts.RunOptions)
	}
	rec, stamp, ok := opts.Cache.lookup(dir, opts.RunOptions)
	if ok {
		return rec, nil
	}
	rec, err := BuildRun(dir, opts.RunOptions)
	if err != nil {
		return nil, err
	}
	opts.Cache.add(dir, opts.RunOptions, stamp, rec)
	return rec, nil
}
