// Package analysis compares sweep runs against a reference run and derives
// the secondary metrics used in comparison charts.
package analysis

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/signalnine/clawsweep/internal/gauge"
	"github.com/signalnine/clawsweep/internal/result"
)

var (
	ErrDivisionByZero = errors.New("reference gauge data has zero L1 norm")
	ErrRelErrSet      = errors.New("relative error already computed for this sweep")
)

// DivisionByZeroError is returned when the reference run is degenerate.
type DivisionByZeroError struct {
	Shape [2]int
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("%v (shape %dx%d)", ErrDivisionByZero, e.Shape[0], e.Shape[1])
}

func (e *DivisionByZeroError) Is(target error) bool { return target == ErrDivisionByZero }

// ShapeMismatchError is returned when a run's gauge data cannot be compared
// element-wise with the reference.
type ShapeMismatchError struct {
	ID        result.RunID
	Reference [2]int
	Run       [2]int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("run %d: gauge data shape %dx%d does not match reference %dx%d",
		e.ID, e.Run[0], e.Run[1], e.Reference[0], e.Reference[1])
}

func L1Norm(s gauge.Series) float64 {
	return s.L1Norm()
}

// RelErr is L1(ref - run) / L1(ref) over every gauge and sample time.
func RelErr(ref, run gauge.Series) (float64, error) {
	if !sameShape(ref, run) {
		r0, r1 := ref.Shape()
		n0, n1 := run.Shape()
		return 0, &ShapeMismatchError{Reference: [2]int{r0, r1}, Run: [2]int{n0, n1}}
	}
	norm := ref.L1Norm()
	if norm == 0 {
		r0, r1 := ref.Shape()
		return 0, &DivisionByZeroError{Shape: [2]int{r0, r1}}
	}
	return floats.Distance(ref.Flatten(), run.Flatten(), 1) / norm, nil
}

func sameShape(a, b gauge.Series) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}

// AddRelErr sets s.RelErr for every run in s against ref. On any failure
// s is left untouched.
func AddRelErr(s *result.Sweep, ref gauge.Series) error {
	if s.RelErr != nil {
		return ErrRelErrSet
	}
	errs := make(map[result.RunID]float64, len(s.GaugeData))
	for _, id := range s.IDs() {
		e, err := RelErr(ref, s.GaugeData[id])
		if err != nil {
			var sm *ShapeMismatchError
			if errors.As(err, &sm) {
				sm.ID = id
				return sm
			}
			return err
		}
		errs[id] = e
	}
	s.RelErr = errs
	return nil
}
