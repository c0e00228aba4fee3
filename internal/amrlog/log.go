// Package amrlog extracts timing and grid census metrics from the text log
// written by an adaptive mesh refinement solver run.
package amrlog

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
)

const DefaultLevels = 3

const number = `(\d*\.?\d+)`

// LogRecord holds the metrics scraped from one run's log.
type LogRecord struct {
	TotalTime  float64 `json:"total_time"`
	UpdateTime float64 `json:"update_time"`
	ValoutTime float64 `json:"valout_time"`
	RegridTime float64 `json:"regrid_time"`
	// GridTime is the sum of LevelsTime, never read from the log.
	GridTime    float64         `json:"grid_time"`
	LevelsTime  map[int]float64 `json:"levels_time"`
	LevelsCells map[int][]int   `json:"levels_cells"`
}

type marker struct {
	name string
	re   *regexp.Regexp
	dest func(*LogRecord) *float64
}

var requiredMarkers = []marker{
	{
		name: "total_time",
		re:   regexp.MustCompile(`Total time to solution\s*=\s*` + number + ` s`),
		dest: func(r *LogRecord) *float64 { return &r.TotalTime },
	},
	{
		name: "update_time",
		re:   regexp.MustCompile(`Total updating\s+time\s*` + number + ` s`),
		dest: func(r *LogRecord) *float64 { return &r.UpdateTime },
	},
	{
		name: "valout_time",
		re:   regexp.MustCompile(`Total valout\s+time\s*` + number + ` s`),
		dest: func(r *LogRecord) *float64 { return &r.ValoutTime },
	},
	{
		name: "regrid_time",
		re:   regexp.MustCompile(`Total regridding\s+time\s*` + number + ` s`),
		dest: func(r *LogRecord) *float64 { return &r.RegridTime },
	},
}

// ParseError reports a required marker missing from (or unreadable in) a log.
type ParseError struct {
	Marker  string
	Pattern string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("log marker %s (%s): %v", e.Marker, e.Pattern, e.Err)
	}
	return fmt.Sprintf("log marker %s not found (pattern %s)", e.Marker, e.Pattern)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLog extracts a LogRecord from the full text of a solver log, scanning
// refinement levels 1..nlevels.
func ParseLog(text string, nlevels int) (*LogRecord, error) {
	if nlevels < 1 {
		nlevels = DefaultLevels
	}
	rec := &LogRecord{
		LevelsTime:  map[int]float64{},
		LevelsCells: map[int][]int{},
	}
	for _, m := range requiredMarkers {
		match := m.re.FindStringSubmatch(text)
		if match == nil {
			return nil, &ParseError{Marker: m.name, Pattern: m.re.String()}
		}
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return nil, &ParseError{Marker: m.name, Pattern: m.re.String(), Err: err}
		}
		*m.dest(rec) = v
	}

	for i, pats := range levelPatternsFor(nlevels) {
		level := i + 1
		timeRe := pats.time
		if match := timeRe.FindStringSubmatch(text); match != nil {
			v, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				return nil, &ParseError{Marker: fmt.Sprintf("levels_time[%d]", level), Pattern: timeRe.String(), Err: err}
			}
			rec.LevelsTime[level] = v
			rec.GridTime += v
		}

		cellsRe := pats.cells
		var cells []int
		for _, match := range cellsRe.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, &ParseError{Marker: fmt.Sprintf("levels_cells[%d]", level), Pattern: cellsRe.String(), Err: err}
			}
			cells = append(cells, n)
		}
		if len(cells) > 0 {
			rec.LevelsCells[level] = cells
		}
	}
	return rec, nil
}

// ReadLog reads the log at path and parses it with ParseLog.
func ReadLog(path string, nlevels int) (*LogRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return ParseLog(string(data), nlevels)
}

type levelPatterns struct {
	time  *regexp.Regexp
	cells *regexp.Regexp
}

var (
	levelMu  sync.Mutex
	levelRes []levelPatterns
)

// levelPatternsFor returns the compiled patterns of levels 1..nlevels,
// compiling each level once per process.
func levelPatternsFor(nlevels int) []levelPatterns {
	levelMu.Lock()
	defer levelMu.Unlock()
	for level := len(levelRes) + 1; level <= nlevels; level++ {
		levelRes = append(levelRes, levelPatterns{
			time:  levelTimePattern(level),
			cells: levelCellsPattern(level),
		})
	}
	return levelRes[:nlevels:nlevels]
}

func levelTimePattern(level int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`Total advanc time on level\s+%d\s*=\s*%s s`, level, number))
}

// The trailing \b keeps level 1 from matching "level 10".
func levelCellsPattern(level int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`\d* grids with\s+(\d+) cells at level\s*%d\b`, level))
}
