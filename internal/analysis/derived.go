package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/signalnine/clawsweep/internal/result"
)

// FractionTimes is (grid + regrid + update time) of each run divided by the
// reference run's grid time.
func FractionTimes(s *result.Sweep, refGridTime float64) (map[result.RunID]float64, error) {
	if refGridTime == 0 {
		return nil, fmt.Errorf("reference grid_time is zero: %w", ErrDivisionByZero)
	}
	out := make(map[result.RunID]float64, s.Len())
	for _, id := range s.IDs() {
		out[id] = (s.GridTime[id] + s.RegridTime[id] + s.UpdateTime[id]) / refGridTime
	}
	return out, nil
}

// domainCells is the number of cells level would need to cover the whole
// domain: the level 1 base count times the squared refinement ratios of
// every level below it.
func domainCells(s *result.Sweep, id result.RunID, level int, ratios []int) (float64, error) {
	if level < 1 {
		return 0, fmt.Errorf("invalid level %d", level)
	}
	if level-1 > len(ratios) {
		return 0, fmt.Errorf("level %d needs %d refinement ratios, have %d", level, level-1, len(ratios))
	}
	base, ok := s.LevelsCells[id][1]
	if !ok || len(base) == 0 {
		return 0, fmt.Errorf("run %d: no level 1 cell count recorded", id)
	}
	if base[0] == 0 {
		return 0, fmt.Errorf("run %d: level 1 cell count is zero", id)
	}
	cells := float64(base[0])
	for _, r := range ratios[:level-1] {
		cells *= math.Pow(float64(r), 2)
	}
	return cells, nil
}

func levelCells(s *result.Sweep, id result.RunID, level int) ([]float64, error) {
	counts, ok := s.LevelsCells[id][level]
	if !ok || len(counts) == 0 {
		return nil, fmt.Errorf("run %d: no cell counts recorded at level %d", id, level)
	}
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = float64(c)
	}
	return out, nil
}

// AvgCellFraction is, for each run, the mean cell count at level over all
// regrids as a fraction of the cells needed to cover the domain at that
// level.
func AvgCellFraction(s *result.Sweep, level int, ratios []int) (map[result.RunID]float64, error) {
	out := make(map[result.RunID]float64, s.Len())
	for _, id := range s.IDs() {
		full, err := domainCells(s, id, level, ratios)
		if err != nil {
			return nil, err
		}
		cells, err := levelCells(s, id, level)
		if err != nil {
			return nil, err
		}
		out[id] = stat.Mean(cells, nil) / full
	}
	return out, nil
}

// CellFractionHistory is the per-regrid fraction of the domain covered at
// level for one run, in regrid order.
func CellFractionHistory(s *result.Sweep, id result.RunID, level int, ratios []int) ([]float64, error) {
	if _, ok := s.TotalTime[id]; !ok {
		return nil, fmt.Errorf("run %d not in sweep", id)
	}
	full, err := domainCells(s, id, level, ratios)
	if err != nil {
		return nil, err
	}
	cells, err := levelCells(s, id, level)
	if err != nil {
		return nil, err
	}
	for i := range cells {
		cells[i] /= full
	}
	return cells, nil
}
