// Package main provides the entry point for the codefang-analyze driver.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang-analyze/cmd/codefang-analyze/commands"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codefang-analyze",
		Short: "Drive C/C++ static analyzers over a compilation database",
		Long: `codefang-analyze invokes one or more static analyzers over every
translation unit in a compilation database, packaging failures as
reproducer archives and aggregating results into run metadata.

Commands:
  run              Run static analysis over a compilation database
  analyzer-version Print a configured analyzer's version string
  list-checkers    List a configured analyzer's checkers and their state
  version          Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewRunCommand(&verbose, &quiet))
	rootCmd.AddCommand(commands.NewAnalyzerVersionCommand())
	rootCmd.AddCommand(commands.NewListCheckersCommand())
	rootCmd.AddCommand(commands.NewDescribeConfigCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "codefang-analyze %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
