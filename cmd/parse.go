package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagReread bool

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [sweep...]",
		Short: "Extract run records, compute errors against the reference and cache the results",
		RunE:  runParse,
	}
	cmd.Flags().BoolVar(&flagReread, "reread", false, "ignore cached results and read every run again")
	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sweeps, err := filterSweeps(cfg.Sweeps, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var errs []error
	for i := range sweeps {
		s := &sweeps[i]
		fmt.Fprintf(out, "Parsing %s (%s)...\n", s.Name, s.Dir)
		loaded, err := loadSweep(cmd.Context(), cfg, s, flagReread)
		if err != nil {
			fmt.Fprintf(out, "  ERROR: %v\n", err)
			logger.Error("sweep failed", zap.String("sweep", s.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		source := "parsed"
		if loaded.fromCache {
			source = "cached"
		}
		res := loaded.outcome.Results
		fmt.Fprintf(out, "  %d runs %s, %d failed\n", res.Len(), source, len(loaded.outcome.Failures))
		if loaded.reference != nil {
			fmt.Fprintf(out, "  reference grid time: %.3f s\n", loaded.reference.GridTime)
		}
		for _, f := range loaded.outcome.Failures {
			fmt.Fprintf(out, "  FAILED %s: %v\n", f.Dir, f.Err)
		}
	}
	return errors.Join(errs...)
}
