package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/signalnine/clawsweep/internal/analysis"
	"github.com/signalnine/clawsweep/internal/config"
	"github.com/signalnine/clawsweep/internal/params"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
)

// sweepCache is what parse stores per sweep so report and plot can skip
// extraction.
type sweepCache struct {
	Sweep     string                  `json:"sweep"`
	// Options are the extraction settings the results were produced with.
	Options   sweep.RunOptions        `json:"options"`
	Root      string                  `json:"root"`
	Results   *result.Sweep           `json:"results"`
	Dirs      map[result.RunID]string `json:"dirs"`
	Failures  []cachedFailure         `json:"failures,omitempty"`
	Reference *result.RunRecord       `json:"reference,omitempty"`
}

type cachedFailure struct {
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

type loadedSweep struct {
	conf      *config.Sweep
	options   sweep.RunOptions
	outcome   *sweep.Outcome
	reference *result.RunRecord
	params    *params.Table
	fromCache bool
}

func (l *loadedSweep) refGridTime() float64 {
	if l.reference == nil {
		return 0
	}
	return l.reference.GridTime
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	return cfg, nil
}

// filterSweeps selects sweeps by name or glob pattern. No patterns selects
// every sweep.
func filterSweeps(sweeps []config.Sweep, patterns []string) ([]config.Sweep, error) {
	if len(patterns) == 0 {
		return sweeps, nil
	}
	var filtered []config.Sweep
	for _, s := range sweeps {
		for _, p := range patterns {
			if ok, _ := path.Match(p, s.Name); ok {
				filtered = append(filtered, s)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no sweep matches %v", patterns)
	}
	return filtered, nil
}

func sweepOptions(cfg *config.Config, s *config.Sweep) sweep.Options {
	return sweep.Options{
		RunOptions: cfg.RunOptions(s),
		Workers:    cfg.Workers,
		Logger:     logger.With(zap.String("sweep", s.Name)),
	}
}

// loadSweep returns the sweep's results from its cache, or extracts them
// when reread is set or no cache exists.
func loadSweep(ctx context.Context, cfg *config.Config, s *config.Sweep, reread bool) (*loadedSweep, error) {
	cachePath := result.CachePath(cfg.Cache.Dir, s.Name)
	if !reread {
		var cached sweepCache
		err := result.ReadCache(cachePath, &cached)
		switch {
		case err == nil && cached.Options.Key() != cfg.RunOptions(s).Key():
			logger.Info("extraction settings changed, ignoring cache",
				zap.String("sweep", s.Name),
				zap.String("cached", cached.Options.Key()),
				zap.String("current", cfg.RunOptions(s).Key()))
		case err == nil:
			logger.Debug("using cached sweep", zap.String("sweep", s.Name), zap.String("cache", cachePath))
			return fromCache(s, &cached)
		case errors.Is(err, os.ErrNotExist):
		default:
			logger.Warn("ignoring unreadable cache", zap.String("cache", cachePath), zap.Error(err))
		}
	}

	loaded, err := processSweep(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	if err := result.WriteCache(cachePath, toCache(loaded)); err != nil {
		return nil, fmt.Errorf("caching sweep %s: %w", s.Name, err)
	}
	return loaded, nil
}

// processSweep extracts the reference run and the sweep concurrently, then
// compares every run against the reference.
func processSweep(ctx context.Context, cfg *config.Config, s *config.Sweep) (*loadedSweep, error) {
	opts := sweepOptions(cfg, s)
	loaded := &loadedSweep{conf: s, options: opts.RunOptions}

	g, gctx := errgroup.WithContext(ctx)
	if s.Reference != "" {
		g.Go(func() error {
			ref, err := sweep.BuildRun(s.Reference, opts.RunOptions)
			if err != nil {
				return fmt.Errorf("reference run %s: %w", s.Reference, err)
			}
			loaded.reference = ref
			return nil
		})
	}
	g.Go(func() error {
		out, err := sweep.Aggregate(gctx, s.Dir, opts)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", s.Name, err)
		}
		loaded.outcome = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if loaded.reference != nil {
		if err := analysis.AddRelErr(loaded.outcome.Results, loaded.reference.GaugeData); err != nil {
			return nil, fmt.Errorf("sweep %s: error analysis: %w", s.Name, err)
		}
	}

	table, err := paramsFor(s, loaded.outcome.Dirs)
	if err != nil {
		return nil, err
	}
	loaded.params = table
	return loaded, nil
}

func paramsFor(s *config.Sweep, dirs map[result.RunID]string) (*params.Table, error) {
	table := params.FromRunNames(dirs)
	if s.ParamsFile == "" {
		return table, nil
	}
	file, err := params.Load(s.ParamsFile)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", s.Name, err)
	}
	return file.Merge(table), nil
}

func toCache(l *loadedSweep) *sweepCache {
	c := &sweepCache{
		Sweep:     l.conf.Name,
		Options:   l.options,
		Root:      l.outcome.Root,
		Results:   l.outcome.Results,
		Dirs:      l.outcome.Dirs,
		Reference: l.reference,
	}
	for _, f := range l.outcome.Failures {
		c.Failures = append(c.Failures, cachedFailure{Dir: f.Dir, Error: f.Err.Error()})
	}
	return c
}

func fromCache(s *config.Sweep, c *sweepCache) (*loadedSweep, error) {
	if c.Results == nil {
		return nil, fmt.Errorf("sweep %s: cache holds no results", s.Name)
	}
	out := &sweep.Outcome{Root: c.Root, Results: c.Results, Dirs: c.Dirs}
	for _, f := range c.Failures {
		out.Failures = append(out.Failures, sweep.Failure{Dir: f.Dir, Err: errors.New(f.Error)})
	}
	table, err := paramsFor(s, c.Dirs)
	if err != nil {
		return nil, err
	}
	return &loadedSweep{
		conf:      s,
		options:   c.Options,
		outcome:   out,
		reference: c.Reference,
		params:    table,
		fromCache: true,
	}, nil
}
