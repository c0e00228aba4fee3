package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/signalnine/clawsweep/internal/config"
	"github.com/signalnine/clawsweep/internal/result"
	"github.com/signalnine/clawsweep/internal/sweep"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [sweep...]",
		Short: "Check the config and sweep layout without extracting runs",
		Long:  "Load the config, then check that every selected sweep directory exists, run names carry unique ids, each run has a log and an output directory, and the reference run is present.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			sweeps, err := filterSweeps(cfg.Sweeps, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var errs []error
			for i := range sweeps {
				problems := checkLayout(cfg, &sweeps[i])
				if len(problems) == 0 {
					fmt.Fprintf(out, "%s: ok\n", sweeps[i].Name)
					continue
				}
				fmt.Fprintf(out, "%s: %d problem(s)\n", sweeps[i].Name, len(problems))
				for _, p := range problems {
					fmt.Fprintf(out, "  - %v\n", p)
				}
				errs = append(errs, fmt.Errorf("sweep %s has %d problem(s)", sweeps[i].Name, len(problems)))
			}
			return errors.Join(errs...)
		},
	}
}

func checkLayout(cfg *config.Config, s *config.Sweep) []error {
	var problems []error
	if s.Reference != "" {
		problems = append(problems, checkRun(cfg, s.Reference)...)
	}
	names, err := sweep.ListRunDirs(s.Dir)
	if err != nil {
		return append(problems, err)
	}
	if len(names) == 0 {
		problems = append(problems, fmt.Errorf("%s contains no run directories", s.Dir))
	}
	seen := map[result.RunID]string{}
	for _, name := range names {
		id, err := sweep.ParseRunID(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if prev, ok := seen[id]; ok {
			problems = append(problems, &sweep.DuplicateRunIDError{ID: id, Dirs: []string{prev, name}})
			continue
		}
		seen[id] = name
		problems = append(problems, checkRun(cfg, filepath.Join(s.Dir, name))...)
	}
	return problems
}

func checkRun(cfg *config.Config, dir string) []error {
	var problems []error
	if _, err := os.Stat(filepath.Join(dir, cfg.LogFile)); err != nil {
		problems = append(problems, fmt.Errorf("%s: missing %s", dir, cfg.LogFile))
	}
	if info, err := os.Stat(filepath.Join(dir, cfg.OutputDir)); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Errorf("%s: missing %s directory", dir, cfg.OutputDir))
	}
	return problems
}
