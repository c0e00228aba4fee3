package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalnine/clawsweep/internal/sweep"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sweeps and their runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range cfg.Sweeps {
				fmt.Fprintf(out, "%s (%s)\n", s.Name, s.Dir)
				if s.Reference != "" {
					fmt.Fprintf(out, "  reference: %s\n", s.Reference)
				}
				names, err := sweep.ListRunDirs(s.Dir)
				if err != nil {
					fmt.Fprintf(out, "  error: %v\n", err)
					continue
				}
				var ids []int
				for _, name := range names {
					id, err := sweep.ParseRunID(name)
					if err != nil {
						fmt.Fprintf(out, "  skipped: %s\n", name)
						continue
					}
					ids = append(ids, int(id))
				}
				sort.Ints(ids)
				fmt.Fprintf(out, "  runs: %s\n", formatIDs(ids))
			}
			return nil
		},
	}
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}
