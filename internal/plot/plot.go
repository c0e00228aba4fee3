// Package plot renders sweep charts with gonum/plot. The output format is
// taken from the file extension (svg, png, pdf, ...).
package plot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/signalnine/clawsweep/internal/analysis"
	"github.com/signalnine/clawsweep/internal/params"
	"github.com/signalnine/clawsweep/internal/result"
)

const (
	DefaultExt    = "svg"
	DefaultXLabel = "run id"
)

var ErrNoRuns = errors.New("sweep has no runs to plot")

type Options struct {
	Dir string
	Ext string
	// Prefix is prepended to every file name, usually the sweep name.
	Prefix string
	// XParam selects a parameter from Params for the x axis. Empty means
	// the run id is used.
	XParam string
	Params *params.Table
	// XLabel overrides the x axis label, which otherwise names XParam or
	// the run id.
	XLabel string
	Levels int
	Ratios []int
	Width  vg.Length
	Height vg.Length
}

func (o Options) withDefaults() Options {
	if o.Ext == "" {
		o.Ext = DefaultExt
	}
	if o.Width == 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 4 * vg.Inch
	}
	if o.Levels == 0 {
		o.Levels = 3
	}
	if len(o.Ratios) == 0 {
		o.Ratios = []int{2, 2}
	}
	return o
}

func (o Options) path(name string) string {
	if o.Prefix != "" {
		name = o.Prefix + "_" + name
	}
	return filepath.Join(o.Dir, name+"."+o.Ext)
}

func (o Options) xLabel() string {
	if o.XLabel != "" {
		return o.XLabel
	}
	if o.XParam != "" {
		return o.XParam
	}
	return DefaultXLabel
}

func (o Options) x(id result.RunID) (float64, error) {
	if o.XParam == "" {
		return float64(id), nil
	}
	v, ok := o.Params.Value(id, o.XParam)
	if !ok {
		return 0, fmt.Errorf("run %d has no value for parameter %q", id, o.XParam)
	}
	return v, nil
}

func (o Options) xys(vals map[result.RunID]float64) (plotter.XYs, error) {
	if len(vals) == 0 {
		return nil, ErrNoRuns
	}
	ids := make([]result.RunID, 0, len(vals))
	for id := range vals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	pts := make(plotter.XYs, len(ids))
	for i, id := range ids {
		x, err := o.x(id)
		if err != nil {
			return nil, err
		}
		pts[i].X = x
		pts[i].Y = vals[id]
	}
	return pts, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Legend.Padding = 1 * vg.Millimeter
	p.Add(plotter.NewGrid())
	return p
}

func addScatter(p *plot.Plot, i int, label string, pts plotter.XYs) error {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("plotting %s: %w", label, err)
	}
	s.GlyphStyle.Color = plotutil.Color(i)
	s.GlyphStyle.Shape = plotutil.Shape(i)
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	if label != "" {
		p.Legend.Add(label, s)
	}
	return nil
}

func save(p *plot.Plot, o Options, name string) (string, error) {
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating plot dir: %w", err)
	}
	path := o.path(name)
	if err := p.Save(o.Width, o.Height, path); err != nil {
		return "", fmt.Errorf("saving %s: %w", path, err)
	}
	return path, nil
}

// RelErr plots each run's relative L1 error against the reference run.
func RelErr(s *result.Sweep, o Options) (string, error) {
	o = o.withDefaults()
	if s.RelErr == nil {
		return "", errors.New("relative errors have not been computed")
	}
	pts, err := o.xys(s.RelErr)
	if err != nil {
		return "", err
	}
	p := newPlot("Relative error", o.xLabel(), "L1 error")
	if err := addScatter(p, 0, "", pts); err != nil {
		return "", err
	}
	return save(p, o, "rel_err")
}

// Times plots grid, regrid and update wall times per run.
func Times(s *result.Sweep, o Options) (string, error) {
	o = o.withDefaults()
	p := newPlot("Wall time", o.xLabel(), "time (s)")
	series := []struct {
		label string
		vals  map[result.RunID]float64
	}{
		{"time on grids", s.GridTime},
		{"regrid time", s.RegridTime},
		{"update time", s.UpdateTime},
	}
	for i, ser := range series {
		pts, err := o.xys(ser.vals)
		if err != nil {
			return "", err
		}
		if err := addScatter(p, i, ser.label, pts); err != nil {
			return "", err
		}
	}
	return save(p, o, "times")
}

// FractionTimes plots compute time relative to the reference run's grid time.
func FractionTimes(s *result.Sweep, refGridTime float64, o Options) (string, error) {
	o = o.withDefaults()
	frac, err := analysis.FractionTimes(s, refGridTime)
	if err != nil {
		return "", err
	}
	pts, err := o.xys(frac)
	if err != nil {
		return "", err
	}
	p := newPlot("Compute time vs reference", o.xLabel(), "ratio of times")
	if err := addScatter(p, 0, "", pts); err != nil {
		return "", err
	}
	return save(p, o, "fraction_times")
}

// AvgCells plots the mean fraction of the domain covered by each refined
// level.
func AvgCells(s *result.Sweep, o Options) (string, error) {
	o = o.withDefaults()
	p := newPlot("Refined area", o.xLabel(), "fraction of domain")
	for level := 2; level <= o.Levels; level++ {
		frac, err := analysis.AvgCellFraction(s, level, o.Ratios)
		if err != nil {
			return "", err
		}
		pts, err := o.xys(frac)
		if err != nil {
			return "", err
		}
		if err := addScatter(p, level-2, fmt.Sprintf("level %d", level), pts); err != nil {
			return "", err
		}
	}
	p.Y.Min = 0
	p.Y.Max = 1.1
	return save(p, o, "avg_cells")
}

// Cells plots, for one run, the fraction of the domain covered by each
// refined level after every regrid. Regrids are spread evenly over [0, 1).
func Cells(s *result.Sweep, id result.RunID, o Options) (string, error) {
	o = o.withDefaults()
	p := newPlot(fmt.Sprintf("Refined area, run %d", id), "time", "fraction of domain")
	for level := 2; level <= o.Levels; level++ {
		hist, err := analysis.CellFractionHistory(s, id, level, o.Ratios)
		if err != nil {
			return "", err
		}
		if len(hist) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(hist))
		for i, v := range hist {
			pts[i].X = float64(i) / float64(len(hist))
			pts[i].Y = v
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("plotting level %d: %w", level, err)
		}
		l.StepStyle = plotter.PostStep
		l.LineStyle.Color = plotutil.Color(level - 2)
		l.LineStyle.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("level %d", level), l)
	}
	p.X.Min = 0
	p.X.Max = 1
	p.Y.Min = 0
	p.Y.Max = 1.1
	return save(p, o, fmt.Sprintf("cells_%d", id))
}

// All renders every sweep chart. cellsRun selects the run for the Cells
// chart; a run absent from the sweep skips it.
func All(s *result.Sweep, refGridTime float64, cellsRun result.RunID, o Options) ([]string, error) {
	var paths []string
	add := func(path string, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}
	if s.RelErr != nil {
		if err := add(RelErr(s, o)); err != nil {
			return paths, err
		}
	}
	if err := add(Times(s, o)); err != nil {
		return paths, err
	}
	if refGridTime > 0 {
		if err := add(FractionTimes(s, refGridTime, o)); err != nil {
			return paths, err
		}
	}
	if err := add(AvgCells(s, o)); err != nil {
		return paths, err
	}
	if _, ok := s.Record(cellsRun); ok {
		if err := add(Cells(s, cellsRun, o)); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

