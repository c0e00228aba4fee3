package watch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/sweep"
	"github.com/signalnine/clawsweep/internal/watch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testTimes = []float64{0, 0.5, 1}

func writeRun(t *testing.T, dir string, total float64) {
	t.Helper()
	out := filepath.Join(dir, "_output")
	require.NoError(t, os.MkdirAll(out, 0o755))
	log := strings.Join([]string{
		fmt.Sprintf("Total time to solution = %.3f s", total),
		"Total updating time 3.000 s",
		"Total valout time 0.500 s",
		"Total regridding time 1.000 s",
		"Total advanc time on level 1 = 5.000 s",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.log"), []byte(log), 0o644))
	for g := 0; g < 2; g++ {
		var b strings.Builder
		for i, tm := range testTimes {
			fmt.Fprintf(&b, " 01 %.7E %.7E\n", tm, float64(g+i+1))
		}
		require.NoError(t, os.WriteFile(filepath.Join(out, fmt.Sprintf("gauge%05d.txt", g)), []byte(b.String()), 0o644))
	}
}

type update struct {
	out *sweep.Outcome
	err error
}

func startWatcher(t *testing.T, root string) (chan update, context.CancelFunc, chan error) {
	t.Helper()
	updates := make(chan update, 64)
	opts := sweep.Options{
		RunOptions: sweep.RunOptions{Gauges: 2, Times: testTimes},
		Logger:     zap.NewNop(),
	}
	w, err := watch.New(root, opts, 50*time.Millisecond, func(out *sweep.Outcome, err error) {
		select {
		case updates <- update{out, err}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates, cancel, done
}

func waitFor(t *testing.T, updates chan update, pred func(update) bool) update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u := <-updates:
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for aggregation")
		}
	}
}

func TestWatcherReaggregatesOnNewRun(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_1"), 1)

	updates, cancel, done := startWatcher(t, root)

	first := waitFor(t, updates, func(u update) bool { return true })
	require.NoError(t, first.err)
	assert.Equal(t, 1, first.out.Results.Len())

	writeRun(t, filepath.Join(root, "run_2"), 2)
	u := waitFor(t, updates, func(u update) bool {
		return u.err == nil && u.out.Results.Len() == 2
	})
	assert.Equal(t, 2.0, u.out.Results.TotalTime[2])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherSeesRewrittenLog(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run_1")
	writeRun(t, runDir, 1)

	updates, _, _ := startWatcher(t, root)
	waitFor(t, updates, func(u update) bool { return u.err == nil })

	writeRun(t, runDir, 42)
	u := waitFor(t, updates, func(u update) bool {
		return u.err == nil && u.out.Results.TotalTime[1] == 42
	})
	assert.Empty(t, u.out.Failures)
}

func TestWatcherReportsSweepErrors(t *testing.T) {
	root := t.TempDir()
	writeRun(t, filepath.Join(root, "run_3"), 1)
	writeRun(t, filepath.Join(root, "case_3"), 1)

	updates, _, _ := startWatcher(t, root)

	u := waitFor(t, updates, func(update) bool { return true })
	var dup *sweep.DuplicateRunIDError
	assert.ErrorAs(t, u.err, &dup)
}

func TestNewRequiresHandler(t *testing.T) {
	_, err := watch.New(t.TempDir(), sweep.Options{}, 0, nil)
	assert.Error(t, err)
}

func TestRunMissingRoot(t *testing.T) {
	w, err := watch.New(filepath.Join(t.TempDir(), "missing"), sweep.Options{}, 0, func(*sweep.Outcome, error) {})
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background()))
}
