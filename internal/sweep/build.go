package sweep

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/signalnine/clawsweep/internal/amrlog"
	"github.com/signalnine/clawsweep/internal/gauge"
	"github.com/signalnine/clawsweep/internal/result"
)

const (
	DefaultLogFile   = "output.log"
	DefaultOutputDir = "_output"
)

// RunOptions says what to extract from a run directory.
type RunOptions struct {
	Gauges    int       `json:"gauges"`
	Times     []float64 `json:"times"`
	Levels    int       `json:"levels"`
	LogFile   string    `json:"log_file"`
	OutputDir string    `json:"output_dir"`
}

// Key identifies the extraction settings after defaults are applied. Two
// option sets with the same key produce the same record for a run.
func (o RunOptions) Key() string {
	o = o.withDefaults()
	times := make([]string, len(o.Times))
	for i, t := range o.Times {
		times[i] = strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprintf("gauges=%d levels=%d log=%s out=%s times=%s",
		o.Gauges, o.Levels, o.LogFile, o.OutputDir, strings.Join(times, ","))
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Levels < 1 {
		o.Levels = amrlog.DefaultLevels
	}
	if o.LogFile == "" {
		o.LogFile = DefaultLogFile
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	return o
}

// BuildRun extracts the log metrics and gauge data of the run in dir.
func BuildRun(dir string, opts RunOptions) (*result.RunRecord, error) {
	opts = opts.withDefaults()

	logPath := filepath.Join(dir, opts.LogFile)
	logRec, err := amrlog.ReadLog(logPath, opts.Levels)
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", logPath, err)
	}

	outDir := filepath.Join(dir, opts.OutputDir)
	series, err := gauge.Read(gauge.DirSource{Dir: outDir}, opts.Gauges, opts.Times)
	if err != nil {
		return nil, fmt.Errorf("gauges in %s: %w", outDir, err)
	}

	return &result.RunRecord{LogRecord: *logRec, GaugeData: series}, nil
}
