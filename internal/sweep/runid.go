package sweep

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/signalnine/clawsweep/internal/result"
)

var runIDPattern = regexp.MustCompile(`^\D*(\d+)`)

// MalformedRunNameError reports a run directory whose name carries no id.
type MalformedRunNameError struct {
	Name string
	Err  error
}

func (e *MalformedRunNameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run directory %q: invalid run id: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("run directory %q: name contains no digits", e.Name)
}

func (e *MalformedRunNameError) Unwrap() error { return e.Err }

// ParseRunID takes the first run of digits in name, e.g. 7 for
// "run_7_wave_1.0_deep_300".
func ParseRunID(name string) (result.RunID, error) {
	m := runIDPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, &MalformedRunNameError{Name: name}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &MalformedRunNameError{Name: name, Err: err}
	}
	return result.RunID(n), nil
}

// DuplicateRunIDError reports two run directories resolving to one id.
type DuplicateRunIDError struct {
	ID   result.RunID
	Dirs []string
}

func (e *DuplicateRunIDError) Error() string {
	return fmt.Sprintf("run id %d claimed by %q and %q", e.ID, e.Dirs[0], e.Dirs[1])
}
