// Package gauge reads per-location instrument time series and projects them
// onto a fixed set of sample times.
package gauge

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Tolerances used when matching a recorded time to a requested one.
const (
	Atol = 1e-8
	Rtol = 1e-5
)

// Series holds one row per gauge location and one column per requested
// sample time.
type Series [][]float64

func (s Series) Shape() (rows, cols int) {
	if len(s) == 0 {
		return 0, 0
	}
	return len(s), len(s[0])
}

func (s Series) Flatten() []float64 {
	var out []float64
	for _, row := range s {
		out = append(out, row...)
	}
	return out
}

// L1Norm is the sum of absolute values over every location and time.
func (s Series) L1Norm() float64 {
	flat := s.Flatten()
	if len(flat) == 0 {
		return 0
	}
	return floats.Norm(flat, 1)
}

// SampleNotFoundError reports a requested time with no recorded sample
// within tolerance.
type SampleNotFoundError struct {
	Location int
	Time     float64
	Nearest  float64
}

func (e *SampleNotFoundError) Error() string {
	if math.IsNaN(e.Nearest) {
		return fmt.Sprintf("gauge %d: no sample recorded near t=%g (series empty)", e.Location, e.Time)
	}
	return fmt.Sprintf("gauge %d: no sample within tolerance of t=%g (nearest t=%g)", e.Location, e.Time, e.Nearest)
}

// NonFiniteSampleError reports a NaN or infinite value at a sampled time,
// as written by a run that diverged.
type NonFiniteSampleError struct {
	Location int
	Time     float64
	Value    float64
}

func (e *NonFiniteSampleError) Error() string {
	return fmt.Sprintf("gauge %d: non-finite value %g at t=%g", e.Location, e.Value, e.Time)
}

// Close reports whether recorded time a matches requested time b within
// Atol plus Rtol relative to b.
func Close(a, b float64) bool {
	return scalar.EqualWithinAbs(a, b, Atol+Rtol*math.Abs(b))
}

// Read samples the first quantity of gauges 0..nLocations-1 at times.
func Read(src Source, nLocations int, times []float64) (Series, error) {
	out := make(Series, 0, nLocations)
	for loc := 0; loc < nLocations; loc++ {
		rec, err := src.Series(loc)
		if err != nil {
			return nil, fmt.Errorf("reading gauge %d: %w", loc, err)
		}
		row, err := Sample(loc, rec, times)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Sample picks, for each requested time, the first quantity at the closest
// recorded time within tolerance. Non-finite values are an error.
func Sample(location int, rec *Record, times []float64) ([]float64, error) {
	row := make([]float64, len(times))
	for j, want := range times {
		best := -1
		bestDist := math.Inf(1)
		for i, got := range rec.Times {
			d := math.Abs(got - want)
			if d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			return nil, &SampleNotFoundError{Location: location, Time: want, Nearest: math.NaN()}
		}
		if !Close(rec.Times[best], want) {
			return nil, &SampleNotFoundError{Location: location, Time: want, Nearest: rec.Times[best]}
		}
		if len(rec.Values[best]) == 0 {
			return nil, fmt.Errorf("gauge %d: no quantities recorded at t=%g", location, rec.Times[best])
		}
		v := rec.Values[best][0]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &NonFiniteSampleError{Location: location, Time: rec.Times[best], Value: v}
		}
		row[j] = v
	}
	return row, nil
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}
