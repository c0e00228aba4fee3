package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/clawsweep/internal/params"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
)

type RunSummary struct {
	ID         result.RunID       `json:"id"`
	Dir        string             `json:"dir,omitempty"`
	Params     map[string]float64 `json:"params,omitempty"`
	TotalTime  float64            `json:"total_time"`
	UpdateTime float64            `json:"update_time"`
	ValoutTime float64            `json:"valout_time"`
	RegridTime float64            `json:"regrid_time"`
	GridTime   float64            `json:"grid_time"`
	RelErr     *float64           `json:"rel_err,omitempty"`
	MeanCells  map[int]float64    `json:"mean_cells,omitempty"`
}

type FailureSummary struct {
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

type Summary struct {
	Sweep      string           `json:"sweep"`
	ParamNames []string         `json:"param_names,omitempty"`
	Runs       []RunSummary     `json:"runs"`
	Failures   []FailureSummary `json:"failures,omitempty"`
}

// Summarize flattens an aggregated sweep into rows sorted by run id.
func Summarize(name string, out *sweep.Outcome, table *params.Table) *Summary {
	s := out.Results
	sum := &Summary{Sweep: name, ParamNames: table.Names()}
	for _, id := range s.IDs() {
		row := RunSummary{
			ID:         id,
			Dir:        filepath.Base(out.Dirs[id]),
			TotalTime:  s.TotalTime[id],
			UpdateTime: s.UpdateTime[id],
			ValoutTime: s.ValoutTime[id],
			RegridTime: s.RegridTime[id],
			GridTime:   s.GridTime[id],
		}
		if table != nil {
			row.Params = table.Runs[id]
		}
		if s.RelErr != nil {
			if v, ok := s.RelErr[id]; ok {
				row.RelErr = &v
			}
		}
		for level, counts := range s.LevelsCells[id] {
			if row.MeanCells == nil {
				row.MeanCells = map[int]float64{}
			}
			row.MeanCells[level] = meanCells(counts)
		}
		sum.Runs = append(sum.Runs, row)
	}
	for _, f := range out.Failures {
		sum.Failures = append(sum.Failures, FailureSummary{Dir: f.Dir, Error: f.Err.Error()})
	}
	return sum
}

func meanCells(counts []int) float64 {
	xs := make([]float64, len(counts))
	for i, c := range counts {
		xs[i] = float64(c)
	}
	return stat.Mean(xs, nil)
}

// Generate writes the summary in the given format.
func Generate(sum *Summary, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(sum, w)
	case "json":
		return writeJSON(sum, w)
	case "csv":
		return writeCSV(sum, w)
	case "table", "":
		return writeTable(sum, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func header(sum *Summary) []string {
	cols := []string{"RUN"}
	for _, p := range sum.ParamNames {
		cols = append(cols, strings.ToUpper(p))
	}
	return append(cols, "TOTAL (s)", "UPDATE (s)", "VALOUT (s)", "REGRID (s)", "GRID (s)", "REL ERR", "MEAN CELLS")
}

func cells(sum *Summary, r RunSummary) []string {
	row := []string{strconv.Itoa(int(r.ID))}
	for _, p := range sum.ParamNames {
		if v, ok := r.Params[p]; ok {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		} else {
			row = append(row, "-")
		}
	}
	relErr := "-"
	if r.RelErr != nil {
		relErr = fmt.Sprintf("%.4g", *r.RelErr)
	}
	return append(row,
		fmt.Sprintf("%.3f", r.TotalTime),
		fmt.Sprintf("%.3f", r.UpdateTime),
		fmt.Sprintf("%.3f", r.ValoutTime),
		fmt.Sprintf("%.3f", r.RegridTime),
		fmt.Sprintf("%.3f", r.GridTime),
		relErr,
		formatMeanCells(r.MeanCells),
	)
}

func formatMeanCells(m map[int]float64) string {
	if len(m) == 0 {
		return "-"
	}
	levels := make([]int, 0, len(m))
	for l := range m {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = fmt.Sprintf("L%d:%.0f", l, m[l])
	}
	return strings.Join(parts, " ")
}

func writeTable(sum *Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Sweep %s: %d runs, %d failed\n", sum.Sweep, len(sum.Runs), len(sum.Failures))
	fmt.Fprintln(tw, strings.Join(header(sum), "\t"))
	for _, r := range sum.Runs {
		fmt.Fprintln(tw, strings.Join(cells(sum, r), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	writeFailures(sum, w)
	return nil
}

func writeMarkdown(sum *Summary, w io.Writer) error {
	h := header(sum)
	fmt.Fprintf(w, "### %s\n\n", sum.Sweep)
	fmt.Fprintln(w, "| "+strings.Join(h, " | ")+" |")
	fmt.Fprintln(w, "|"+strings.Repeat("---|", len(h)))
	for _, r := range sum.Runs {
		fmt.Fprintln(w, "| "+strings.Join(cells(sum, r), " | ")+" |")
	}
	writeFailures(sum, w)
	return nil
}

func writeFailures(sum *Summary, w io.Writer) {
	if len(sum.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailed runs:")
	for _, f := range sum.Failures {
		fmt.Fprintf(w, "  - %s: %s\n", f.Dir, f.Error)
	}
}

func writeJSON(sum *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func writeCSV(sum *Summary, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(sum)); err != nil {
		return err
	}
	for _, r := range sum.Runs {
		if err := cw.Write(cells(sum, r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
