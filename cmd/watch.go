package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/analysis"
	"github.com/signalnine/clawsweep/internal/config"
	"github.com/signalnine/clawsweep/internal/report"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
	"github.com/signalnine/clawsweep/internal/watch"
)

var flagDebounce time.Duration

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <sweep>",
		Short: "Re-summarize a sweep whenever its runs change",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	cmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-aggregating")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := cfg.Find(args[0])
	if err != nil {
		return err
	}
	opts := sweepOptions(cfg, s)

	var ref *result.RunRecord
	if s.Reference != "" {
		ref, err = sweep.BuildRun(s.Reference, opts.RunOptions)
		if err != nil {
			return fmt.Errorf("reference run %s: %w", s.Reference, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(s.Dir, opts, flagDebounce, summarizer(cmd, s, ref))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", s.Dir)
	return w.Run(ctx)
}

// summarizer prints a table for every aggregation of s.
func summarizer(cmd *cobra.Command, s *config.Sweep, ref *result.RunRecord) watch.Handler {
	return func(out *sweep.Outcome, err error) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n[%s]\n", time.Now().Format(time.TimeOnly))
		if err != nil {
			fmt.Fprintf(w, "ERROR: %v\n", err)
			return
		}
		if ref != nil {
			if err := analysis.AddRelErr(out.Results, ref.GaugeData); err != nil {
				logger.Warn("error analysis failed", zap.String("sweep", s.Name), zap.Error(err))
			}
		}
		table, err := paramsFor(s, out.Dirs)
		if err != nil {
			logger.Warn("loading params", zap.Error(err))
		}
		if err := report.Generate(report.Summarize(s.Name, out, table), "table", w); err != nil {
			logger.Warn("writing summary", zap.Error(err))
		}
	}
}

