package result

import (
	"fmt"
	"sort"

	"github.com/signalnine/clawsweep/internal/amrlog"
	"github.com/signalnine/clawsweep/internal/gauge"
)

// RunID identifies one run within a sweep.
type RunID int

// RunRecord is everything extracted from one run directory.
type RunRecord struct {
	amrlog.LogRecord
	GaugeData gauge.Series `json:"gauge_data"`
}

// Metric names, as used by reports and the cache.
const (
	FieldTotalTime   = "total_time"
	FieldUpdateTime  = "update_time"
	FieldValoutTime  = "valout_time"
	FieldRegridTime  = "regrid_time"
	FieldGridTime    = "grid_time"
	FieldLevelsTime  = "levels_time"
	FieldLevelsCells = "levels_cells"
	FieldGaugeData   = "gauge_data"
	FieldRelErr      = "rel_err"
)

// ScalarFields lists the metrics holding one float per run.
var ScalarFields = []string{
	FieldTotalTime,
	FieldUpdateTime,
	FieldValoutTime,
	FieldRegridTime,
	FieldGridTime,
	FieldRelErr,
}

// Sweep is the pivoted form of a sweep's run records: one map per metric,
// each keyed by RunID.
type Sweep struct {
	TotalTime   map[RunID]float64         `json:"total_time"`
	UpdateTime  map[RunID]float64         `json:"update_time"`
	ValoutTime  map[RunID]float64         `json:"valout_time"`
	RegridTime  map[RunID]float64         `json:"regrid_time"`
	GridTime    map[RunID]float64         `json:"grid_time"`
	LevelsTime  map[RunID]map[int]float64 `json:"levels_time"`
	LevelsCells map[RunID]map[int][]int   `json:"levels_cells"`
	GaugeData   map[RunID]gauge.Series    `json:"gauge_data"`
	// RelErr stays nil until the error analysis has run.
	RelErr map[RunID]float64 `json:"rel_err"`
}

func NewSweep() *Sweep {
	return &Sweep{
		TotalTime:   map[RunID]float64{},
		UpdateTime:  map[RunID]float64{},
		ValoutTime:  map[RunID]float64{},
		RegridTime:  map[RunID]float64{},
		GridTime:    map[RunID]float64{},
		LevelsTime:  map[RunID]map[int]float64{},
		LevelsCells: map[RunID]map[int][]int{},
		GaugeData:   map[RunID]gauge.Series{},
	}
}

// Pivot transposes run records into a Sweep. Every declared field is filled
// for every run.
func Pivot(records map[RunID]*RunRecord) *Sweep {
	s := NewSweep()
	for id, r := range records {
		s.TotalTime[id] = r.TotalTime
		s.UpdateTime[id] = r.UpdateTime
		s.ValoutTime[id] = r.ValoutTime
		s.RegridTime[id] = r.RegridTime
		s.GridTime[id] = r.GridTime
		s.LevelsTime[id] = r.LevelsTime
		s.LevelsCells[id] = r.LevelsCells
		s.GaugeData[id] = r.GaugeData
	}
	return s
}

// Record rebuilds the RunRecord for one run.
func (s *Sweep) Record(id RunID) (*RunRecord, bool) {
	if _, ok := s.TotalTime[id]; !ok {
		return nil, false
	}
	return &RunRecord{
		LogRecord: amrlog.LogRecord{
			TotalTime:   s.TotalTime[id],
			UpdateTime:  s.UpdateTime[id],
			ValoutTime:  s.ValoutTime[id],
			RegridTime:  s.RegridTime[id],
			GridTime:    s.GridTime[id],
			LevelsTime:  s.LevelsTime[id],
			LevelsCells: s.LevelsCells[id],
		},
		GaugeData: s.GaugeData[id],
	}, true
}

// IDs returns the run ids in ascending order.
func (s *Sweep) IDs() []RunID {
	ids := make([]RunID, 0, len(s.TotalTime))
	for id := range s.TotalTime {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Sweep) Len() int { return len(s.TotalTime) }

// Scalar returns the per-run map for a scalar metric.
func (s *Sweep) Scalar(field string) (map[RunID]float64, error) {
	switch field {
	case FieldTotalTime:
		return s.TotalTime, nil
	case FieldUpdateTime:
		return s.UpdateTime, nil
	case FieldValoutTime:
		return s.ValoutTime, nil
	case FieldRegridTime:
		return s.RegridTime, nil
	case FieldGridTime:
		return s.GridTime, nil
	case FieldRelErr:
		if s.RelErr == nil {
			return nil, fmt.Errorf("metric %s not computed", field)
		}
		return s.RelErr, nil
	}
	return nil, fmt.Errorf("unknown scalar metric %q", field)
}

// Point is one (run, value) pair handed to renderers.
type Point struct {
	ID    RunID   `json:"id"`
	Value float64 `json:"value"`
}

// Points returns a scalar metric as pairs sorted by RunID.
func (s *Sweep) Points(field string) ([]Point, error) {
	m, err := s.Scalar(field)
	if err != nil {
		return nil, err
	}
	pts := make([]Point, 0, len(m))
	for id, v := range m {
		pts = append(pts, Point{ID: id, Value: v})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
	return pts, nil
}
