package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/clawsweep/internal/plot"
	"github.com/signalnine/clawsweep/internal/result"
)

var (
	flagPlotOut  string
	flagPlotExt  string
	flagCellsRun int
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [sweep...]",
		Short: "Render error, timing and refinement charts",
		RunE:  runPlot,
	}
	cmd.Flags().StringVar(&flagPlotOut, "out", "", "output directory (default: a new timestamped directory under results.dir)")
	cmd.Flags().StringVar(&flagPlotExt, "ext", plot.DefaultExt, "image format (svg, png, pdf, ...)")
	cmd.Flags().IntVar(&flagCellsRun, "cells-run", -1, "run whose refinement history is charted (default: lowest id)")
	return cmd
}

func runPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sweeps, err := filterSweeps(cfg.Sweeps, args)
	if err != nil {
		return err
	}
	outDir := flagPlotOut
	if outDir == "" {
		outDir, err = result.CreateOutputDir(cfg.Results.Dir)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output directory: %s\n", outDir)

	var errs []error
	for i := range sweeps {
		s := &sweeps[i]
		loaded, err := loadSweep(cmd.Context(), cfg, s, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cellsRun := result.RunID(flagCellsRun)
		if ids := loaded.outcome.Results.IDs(); flagCellsRun < 0 && len(ids) > 0 {
			cellsRun = ids[0]
		}
		paths, err := plot.All(loaded.outcome.Results, loaded.refGridTime(), cellsRun, plot.Options{
			Dir:    outDir,
			Ext:    flagPlotExt,
			Prefix: s.Name,
			XParam: s.XParam,
			XLabel: s.Parameter,
			Params: loaded.params,
			Levels: s.Levels,
			Ratios: s.RefinementRatios,
		})
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
		}
		if err != nil {
			logger.Error("plotting failed", zap.String("sweep", s.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("sweep %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}
