package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/signalnine/clawsweep/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [sweep...]",
		Short: "Summarize sweep results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sweeps, err := filterSweeps(cfg.Sweeps, args)
			if err != nil {
				return err
			}
			var errs []error
			for i := range sweeps {
				loaded, err := loadSweep(cmd.Context(), cfg, &sweeps[i], false)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				sum := report.Summarize(sweeps[i].Name, loaded.outcome, loaded.params)
				if err := report.Generate(sum, flagFormat, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json, csv)")
	return cmd
}
