package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/clawsweep/internal/amrlog"
	"github.com/signalnine/clawsweep/internal/gauge"
	"github.com/signalnine/clawsweep/internal/sweep"
)

type Config struct {
	LogFile   string  `yaml:"log_file"`
	OutputDir string  `yaml:"output_dir"`
	Workers   int     `yaml:"workers"`
	Cache     Cache   `yaml:"cache"`
	Results   Results `yaml:"results"`
	Sweeps    []Sweep `yaml:"sweeps"`
}

type Cache struct {
	Dir string `yaml:"dir"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

// Sweep describes one directory of runs and the reference run it is
// compared against.
type Sweep struct {
	Name      string    `yaml:"name"`
	Dir       string    `yaml:"dir"`
	Reference string    `yaml:"reference"`
	Gauges    int       `yaml:"gauges"`
	Levels    int       `yaml:"levels"`
	Times     []float64 `yaml:"times"`
	Linspace  *Linspace `yaml:"linspace"`
	// RefinementRatios between consecutive levels, used for cell fractions.
	RefinementRatios []int  `yaml:"refinement_ratios"`
	Parameter        string `yaml:"parameter"`
	XParam           string `yaml:"x_param"`
	ParamsFile       string `yaml:"params_file"`
}

type Linspace struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Count int     `yaml:"count"`
}

// SampleTimes returns the explicit times, or the linspace expansion.
func (s *Sweep) SampleTimes() []float64 {
	if len(s.Times) > 0 {
		return s.Times
	}
	if s.Linspace != nil {
		return gauge.Linspace(s.Linspace.Start, s.Linspace.Stop, s.Linspace.Count)
	}
	return nil
}

// RunOptions is the extraction setup shared by every run of the sweep.
func (c *Config) RunOptions(s *Sweep) sweep.RunOptions {
	return sweep.RunOptions{
		Gauges:    s.Gauges,
		Times:     s.SampleTimes(),
		Levels:    s.Levels,
		LogFile:   c.LogFile,
		OutputDir: c.OutputDir,
	}
}

// Find returns the sweep named name.
func (c *Config) Find(name string) (*Sweep, error) {
	for i := range c.Sweeps {
		if c.Sweeps[i].Name == name {
			return &c.Sweeps[i], nil
		}
	}
	return nil, fmt.Errorf("no sweep named %q", name)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.LogFile == "" {
		cfg.LogFile = sweep.DefaultLogFile
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = sweep.DefaultOutputDir
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".clawsweep/cache"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if len(cfg.Sweeps) == 0 {
		return fmt.Errorf("no sweeps defined")
	}
	seen := map[string]bool{}
	for i := range cfg.Sweeps {
		s := &cfg.Sweeps[i]
		if s.Name == "" {
			return fmt.Errorf("sweep %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sweep %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Dir == "" {
			return fmt.Errorf("sweep %q: dir is required", s.Name)
		}
		if s.Gauges < 1 {
			return fmt.Errorf("sweep %q: gauges must be at least 1", s.Name)
		}
		if s.Levels == 0 {
			s.Levels = amrlog.DefaultLevels
		}
		if len(s.Times) > 0 && s.Linspace != nil {
			return fmt.Errorf("sweep %q: set either times or linspace, not both", s.Name)
		}
		if s.Linspace != nil && s.Linspace.Count < 1 {
			return fmt.Errorf("sweep %q: linspace count must be at least 1", s.Name)
		}
		if len(s.SampleTimes()) == 0 {
			return fmt.Errorf("sweep %q: no sample times (set times or linspace)", s.Name)
		}
		if len(s.RefinementRatios) == 0 {
			s.RefinementRatios = []int{2, 2}
		}
		if s.Parameter == "" {
			s.Parameter = s.XParam
		}
		if s.Parameter == "" {
			s.Parameter = "run id"
		}
	}
	return nil
}
