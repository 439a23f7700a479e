package commands

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer/clangtidy"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/checkers"
)

// NewListCheckersCommand builds "list-checkers": a read-only wrapper
// around Adapter.DiscoverCheckers plus the checkers.Registry's default
// enablement state, grounded on the original driver's checkers inspection
// command.
func NewListCheckersCommand() *cobra.Command {
	var (
		name        string
		profilePath string
		enableAll   bool
	)

	cmd := &cobra.Command{
		Use:   "list-checkers",
		Short: "List a configured analyzer's checkers and their default state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ad := adapterByName(name)
			if ad == nil {
				return fmt.Errorf("list-checkers: unknown analyzer %q", name)
			}

			bin, err := ad.ResolveBinary(name)
			if err != nil {
				return fmt.Errorf("list-checkers: %w", err)
			}

			discovered, err := ad.DiscoverCheckers(context.Background(), bin)
			if err != nil {
				return fmt.Errorf("list-checkers: %w", err)
			}

			reg := checkers.NewRegistry(discovered)

			if profilePath != "" {
				profiles, loadErr := checkers.LoadProfileSet(profilePath)
				if loadErr != nil {
					return fmt.Errorf("list-checkers: %w", loadErr)
				}

				reg.ApplyDefaultProfile(profiles)
			}

			if enableAll {
				reg.EnableAll(false, runtime.GOOS == "darwin")
			}

			if name == clangtidy.Name {
				checkers.AdjustForClangTidy(reg)
			}

			renderCheckerTable(cmd, discovered, reg)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "analyzer", "clangsa", "analyzer name: "+adapterNamesJoined())
	cmd.Flags().StringVar(&profilePath, "checker-profile", "", "YAML profile/guideline description file seeding the default profile")
	cmd.Flags().BoolVar(&enableAll, "enable-all", false, "show states as if every non-alpha/debug checker were enabled")

	return cmd
}

func renderCheckerTable(cmd *cobra.Command, discovered []checkers.Checker, reg *checkers.Registry) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Checker", "State", "Description"})

	for _, c := range discovered {
		tbl.AppendRow(table.Row{c.Name, reg.State(c.Name).String(), c.Description})
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("Total: %d checkers", len(discovered))})
	tbl.Render()
}
