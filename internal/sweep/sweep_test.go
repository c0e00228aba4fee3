package sweep_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/amrlog"
	"github.com/signalnine/clawsweep/internal/gauge"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
)

func TestParseRunID(t *testing.T) {
	tests := []struct {
		name string
		want result.RunID
	}{
		{"run_7_wave_1.0_deep_300", 7},
		{"run_12_wave_0.25_deep_700", 12},
		{"advection_test10", 10},
		{"42", 42},
		{"euler007", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sweep.ParseRunID(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRunIDMalformed(t *testing.T) {
	for _, name := range []string{"baseline", "", "run_x"} {
		_, err := sweep.ParseRunID(name)
		var mre *sweep.MalformedRunNameError
		require.True(t, errors.As(err, &mre), "name %q: got %v", name, err)
		assert.Equal(t, name, mre.Name)
	}
	_, err := sweep.ParseRunID("run_99999999999999999999999")
	var mre *sweep.MalformedRunNameError
	assert.True(t, errors.As(err, &mre))
}

func TestBuildRun(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, runFixture{totalTime: 12.5, level2: []int{400, 250}, gaugeScale: 1})

	rec, err := sweep.BuildRun(dir, sweep.RunOptions{Gauges: 2, Times: testTimes})
	require.NoError(t, err)
	assert.Equal(t, 12.5, rec.TotalTime)
	assert.Equal(t, 7.0, rec.GridTime)
	assert.Equal(t, map[int][]int{2: {400, 250}}, rec.LevelsCells)
	assert.Equal(t, gauge.Series{{1, 2, 3}, {2, 4, 6}}, rec.GaugeData)
}

func TestBuildRunPropagatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, runFixture{totalTime: 1, gaugeScale: 1, dropMarker: "Total valout"})
	rec, err := sweep.BuildRun(dir, sweep.RunOptions{Gauges: 2, Times: testTimes})
	assert.Nil(t, rec)
	var perr *amrlog.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "valout_time", perr.Marker)
	assert.Contains(t, err.Error(), filepath.Join(dir, "output.log"))

	_, err = sweep.BuildRun(t.TempDir(), sweep.RunOptions{Gauges: 2, Times: testTimes})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAggregate(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_7_wave_1.0_deep_300"), runFixture{totalTime: 7, gaugeScale: 1})
	writeRun(t, filepath.Join(root, "run_12_wave_0.5_deep_300"), runFixture{totalTime: 12, gaugeScale: 2})
	writeRun(t, filepath.Join(root, "run_3_wave_0.5_deep_100"), runFixture{totalTime: 3, gaugeScale: 3, level2: []int{10}})
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes_5.txt"), []byte("ignored"), 0o644))

	out, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
		Workers:    2,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	assert.Empty(t, out.Failures)

	want := []result.RunID{3, 7, 12}
	assert.Equal(t, want, out.Results.IDs())
	s := out.Results
	for _, m := range []int{len(s.TotalTime), len(s.UpdateTime), len(s.ValoutTime), len(s.RegridTime),
		len(s.GridTime), len(s.LevelsTime), len(s.LevelsCells), len(s.GaugeData)} {
		assert.Equal(t, len(want), m)
	}
	assert.Equal(t, 12.0, s.TotalTime[12])
	assert.Equal(t, []int{10}, s.LevelsCells[3][2])
	assert.NotContains(t, s.LevelsCells[7], 2)
	assert.Equal(t, gauge.Series{{2, 4, 6}, {4, 8, 12}}, s.GaugeData[12])
	assert.Equal(t, filepath.Join(root, "run_7_wave_1.0_deep_300"), out.Dirs[7])
	assert.Nil(t, s.RelErr)
}

func TestAggregateExcludesDivergedRun(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_1"), runFixture{totalTime: 1, gaugeScale: 1})
	diverged := filepath.Join(root, "run_2")
	writeRun(t, diverged, runFixture{totalTime: 2, gaugeScale: 1})
	gaugePath := filepath.Join(diverged, "_output", "gauge00001.txt")
	require.NoError(t, os.WriteFile(gaugePath, []byte(" 01 0.0 1.0\n 01 0.5 NaN\n 01 1.0 Inf\n"), 0o644))

	out, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
	})
	require.NoError(t, err)
	assert.Equal(t, []result.RunID{1}, out.Results.IDs())
	require.Len(t, out.Failures, 1)
	assert.Equal(t, diverged, out.Failures[0].Dir)
	var nf *gauge.NonFiniteSampleError
	require.ErrorAs(t, out.Failures[0].Err, &nf)
	assert.Equal(t, 1, nf.Location)

	// What survives extraction can always be cached.
	require.NoError(t, result.WriteCache(filepath.Join(t.TempDir(), "sweep"+result.CacheExt), out.Results))
}

func TestAggregateCacheSeparatesOptions(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_1"), runFixture{totalTime: 1, gaugeScale: 1})

	cache, err := sweep.NewRecordCache(8)
	require.NoError(t, err)

	three, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
		Cache:      cache,
	})
	require.NoError(t, err)
	rows, cols := three.Results.GaugeData[1].Shape()
	assert.Equal(t, [2]int{2, 3}, [2]int{rows, cols})

	two, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 1, Times: []float64{0, 1}},
		Cache:      cache,
	})
	require.NoError(t, err)
	rows, cols = two.Results.GaugeData[1].Shape()
	assert.Equal(t, [2]int{1, 2}, [2]int{rows, cols})
	assert.Equal(t, 2, cache.Len())
}

func TestRunOptionsKey(t *testing.T) {
	base := sweep.RunOptions{Gauges: 2, Times: []float64{0, 0.5}}
	assert.Equal(t, base.Key(), sweep.RunOptions{Gauges: 2, Times: []float64{0, 0.5}, Levels: 3, LogFile: "output.log", OutputDir: "_output"}.Key())
	assert.NotEqual(t, base.Key(), sweep.RunOptions{Gauges: 2, Times: []float64{0, 0.25}}.Key())
	assert.NotEqual(t, base.Key(), sweep.RunOptions{Gauges: 3, Times: []float64{0, 0.5}}.Key())
	assert.NotEqual(t, base.Key(), sweep.RunOptions{Gauges: 2, Times: []float64{0, 0.5}, Levels: 4}.Key())
}

func TestAggregateCollectsFailures(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_1"), runFixture{totalTime: 1, gaugeScale: 1})
	writeRun(t, filepath.Join(root, "run_2"), runFixture{totalTime: 2, gaugeScale: 1, dropMarker: "Total time to solution"})
	writeRun(t, filepath.Join(root, "run_3"), runFixture{totalTime: 3, gaugeScale: 1, gaugeTimes: []float64{0, 0.4, 1}})
	writeRun(t, filepath.Join(root, "baseline"), runFixture{totalTime: 4, gaugeScale: 1})

	out, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
		Workers:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, []result.RunID{1}, out.Results.IDs())
	assert.NotContains(t, out.Dirs, result.RunID(2))
	require.Len(t, out.Failures, 3)

	assert.Equal(t, filepath.Join(root, "baseline"), out.Failures[0].Dir)
	var mre *sweep.MalformedRunNameError
	assert.True(t, errors.As(out.Failures[0].Err, &mre))

	var perr *amrlog.ParseError
	assert.True(t, errors.As(out.Failures[1].Err, &perr))
	assert.Equal(t, "total_time", perr.Marker)
	var re *sweep.RunError
	require.True(t, errors.As(out.Failures[1].Err, &re))
	assert.Equal(t, result.RunID(2), re.ID)

	var snf *gauge.SampleNotFoundError
	require.True(t, errors.As(out.Failures[2].Err, &snf))
	assert.Equal(t, 0.5, snf.Time)
	assert.Contains(t, out.Failures[2].Err.Error(), "run_3")
}

func TestAggregateDuplicateRunID(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_7_a"), runFixture{totalTime: 1, gaugeScale: 1})
	writeRun(t, filepath.Join(root, "run_7_b"), runFixture{totalTime: 1, gaugeScale: 1})

	out, err := sweep.Aggregate(context.Background(), root, sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
	})
	assert.Nil(t, out)
	var dup *sweep.DuplicateRunIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, result.RunID(7), dup.ID)
}

func TestAggregateEmpty(t *testing.T) {
	out, err := sweep.Aggregate(context.Background(), t.TempDir(), sweep.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Results.Len())
	assert.Empty(t, out.Failures)

	_, err = sweep.Aggregate(context.Background(), filepath.Join(t.TempDir(), "missing"), sweep.Options{})
	assert.Error(t, err)
}

func TestAggregateCancelled(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_1"), runFixture{totalTime: 1, gaugeScale: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweep.Aggregate(ctx, root, sweep.Options{RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregateReusesCachedRecords(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run_1")
	writeRun(t, runDir, runFixture{totalTime: 1, gaugeScale: 1})

	cache, err := sweep.NewRecordCache(8)
	require.NoError(t, err)
	opts := sweep.Options{RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes}, Cache: cache}

	first, err := sweep.Aggregate(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// Nothing changed on disk, so the cached record is served as is.
	second, err := sweep.Aggregate(context.Background(), root, opts)
	require.NoError(t, err)
	assert.True(t, &first.Results.GaugeData[1][0][0] == &second.Results.GaugeData[1][0][0])

	// Rewriting a gauge file in place invalidates the entry.
	gaugePath := filepath.Join(runDir, "_output", "gauge00001.txt")
	require.NoError(t, os.WriteFile(gaugePath, []byte(" 01 0.0 9.0\n 01 0.5 9.0\n 01 1.0 9.0\n"), 0o644))
	rewritten, err := sweep.Aggregate(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 9, 9}, rewritten.Results.GaugeData[1][1])

	// A longer log invalidates the entry.
	writeRunLog(t, runDir, runFixture{totalTime: 100, gaugeScale: 1})
	third, err := sweep.Aggregate(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 100.0, third.Results.TotalTime[1])
	assert.Equal(t, []float64{9, 9, 9}, third.Results.GaugeData[1][1])
}
