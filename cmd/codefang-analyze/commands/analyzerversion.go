package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/analyzer"
)

// NewAnalyzerVersionCommand builds "analyzer-version": a read-only wrapper
// around Adapter.VersionLong, grounded on the original driver's
// analyzer_version inspection command.
func NewAnalyzerVersionCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "analyzer-version",
		Short: "Print a configured analyzer's version string",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ad := adapterByName(name)
			if ad == nil {
				return fmt.Errorf("analyzer-version: unknown analyzer %q", name)
			}

			bin, err := ad.ResolveBinary(name)
			if err != nil {
				return fmt.Errorf("analyzer-version: %w", err)
			}

			long, err := ad.VersionLong(context.Background(), bin)
			if err != nil {
				return fmt.Errorf("analyzer-version: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), long)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "analyzer", "clangsa", "analyzer name: "+adapterNamesJoined())

	return cmd
}

// adapterByName looks up one of the five supported adapters by name.
func adapterByName(name string) analyzer.Adapter {
	for _, ad := range allAdapters() {
		if ad.Name() == name {
			return ad
		}
	}

	return nil
}

func adapterNamesJoined() string {
	names := ""
	for i, ad := range allAdapters() {
		if i > 0 {
			names += ", "
		}

		names += ad.Name()
	}

	return names
}
