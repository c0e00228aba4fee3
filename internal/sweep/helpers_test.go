package sweep_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testTimes = []float64{0, 0.5, 1}

type runFixture struct {
	totalTime  float64
	level2     []int
	gaugeScale float64
	dropMarker string
	gaugeTimes []float64
}

func logText(f runFixture) string {
	lines := []string{
		fmt.Sprintf("Total time to solution = %.3f s", f.totalTime),
		"Total updating time 3.000 s",
		"Total valout time 0.500 s",
		"Total regridding time 1.000 s",
		"Total advanc time on level 1 = 5.000 s",
		"Total advanc time on level 2 = 2.000 s",
	}
	for _, c := range f.level2 {
		lines = append(lines, fmt.Sprintf("   4 grids with %d cells at level 2", c))
	}
	var kept []string
	for _, l := range lines {
		if f.dropMarker != "" && strings.HasPrefix(l, f.dropMarker) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n") + "\n"
}

// writeRun lays out dir/output.log and dir/_output/gaugeNNNNN.txt for two
// gauges.
func writeRun(t *testing.T, dir string, f runFixture) {
	t.Helper()
	out := filepath.Join(dir, "_output")
	require.NoError(t, os.MkdirAll(out, 0o755))
	writeRunLog(t, dir, f)

	times := f.gaugeTimes
	if times == nil {
		times = testTimes
	}
	for g := 0; g < 2; g++ {
		var b strings.Builder
		fmt.Fprintf(&b, "# gauge_id= %d\n", g)
		for i, tm := range times {
			fmt.Fprintf(&b, " 01 %.7E %.7E 0.0\n", tm, f.gaugeScale*float64(g+1)*float64(i+1))
		}
		name := fmt.Sprintf("gauge%05d.txt", g)
		require.NoError(t, os.WriteFile(filepath.Join(out, name), []byte(b.String()), 0o644))
	}
}

func writeRunLog(t *testing.T, dir string, f runFixture) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.log"), []byte(logText(f)), 0o644))
}
