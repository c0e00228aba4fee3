// Package params maps run ids to the parameter values a sweep assigned them.
package params

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalnine/clawsweep/internal/result"
)

// Table holds parameter values per run.
type Table struct {
	Runs map[result.RunID]map[string]float64
}

// Load reads a YAML file of the form
//
//	7:
//	  wave_tolerance: 1.0
//	  deep_depth: 300
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading params file: %w", err)
	}
	var runs map[result.RunID]map[string]float64
	if err := yaml.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("parsing params file: %w", err)
	}
	return &Table{Runs: runs}, nil
}

// FromRunNames builds a table from run directory names.
func FromRunNames(dirs map[result.RunID]string) *Table {
	t := &Table{Runs: make(map[result.RunID]map[string]float64, len(dirs))}
	for id, dir := range dirs {
		t.Runs[id] = FromRunName(dir)
	}
	return t
}

// FromRunName reads key_value pairs out of a run directory name, so
// "run_7_wave_1.0_deep_300" gives run=7, wave=1, deep=300. Only the base
// name is considered.
func FromRunName(name string) map[string]float64 {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	out := map[string]float64{}
	parts := strings.Split(name, "_")
	for i := 0; i+1 < len(parts); i++ {
		if _, err := strconv.ParseFloat(parts[i], 64); err == nil || parts[i] == "" {
			continue
		}
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			continue
		}
		out[parts[i]] = v
		i++
	}
	return out
}

// Merge returns a table whose values come from t, falling back to other.
func (t *Table) Merge(other *Table) *Table {
	out := &Table{Runs: map[result.RunID]map[string]float64{}}
	for _, src := range []*Table{other, t} {
		if src == nil {
			continue
		}
		for id, vals := range src.Runs {
			if out.Runs[id] == nil {
				out.Runs[id] = map[string]float64{}
			}
			for k, v := range vals {
				out.Runs[id][k] = v
			}
		}
	}
	return out
}

// Value returns the value of param for run id.
func (t *Table) Value(id result.RunID, param string) (float64, bool) {
	if t == nil || t.Runs == nil {
		return 0, false
	}
	vals, ok := t.Runs[id]
	if !ok {
		return 0, false
	}
	v, ok := vals[param]
	return v, ok
}

// Names lists every parameter name in the table, sorted.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, vals := range t.Runs {
		for k := range vals {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}
