package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codefang-analyze/internal/config"
	"github.com/Sumatoshi-tech/codefang-analyze/pkg/pipeline"
)

// configOptions describes every Config field as a pipeline.ConfigurationOption,
// the same self-describing option shape pipeline items use to declare their
// flags, repurposed here for the driver's top-level configuration surface.
func configOptions() []pipeline.ConfigurationOption {
	return []pipeline.ConfigurationOption{
		{Name: "jobs", Flag: "jobs", Type: pipeline.IntConfigurationOption, Default: config.DefaultJobs, Description: "worker pool size; 0 uses the CPU count"},
		{Name: "output_dir", Flag: "output", Type: pipeline.PathConfigurationOption, Default: config.DefaultOutputDir, Description: "output directory for reports and reproducers"},
		{Name: "timeout", Flag: "timeout", Type: pipeline.IntConfigurationOption, Default: 0, Description: "per-task watchdog timeout in seconds; 0 disables it"},
		{Name: "skip_list_path", Flag: "ignore", Type: pipeline.PathConfigurationOption, Default: "", Description: "skip-list file excluding sources by glob"},
		{Name: "dedup.policy", Flag: "dedup-policy", Type: pipeline.StringConfigurationOption, Default: string(config.DefaultDedupPolicy), Description: "duplicate-source resolution policy: none, strict, alpha, regex"},
		{Name: "dedup.regex", Flag: "dedup-regex", Type: pipeline.StringConfigurationOption, Default: config.DefaultDedupRegex, Description: "regex distinguishing the kept duplicate when dedup.policy is regex"},
		{Name: "ctu.mode", Flag: "ctu", Type: pipeline.StringConfigurationOption, Default: string(config.DefaultCTUMode), Description: "cross-translation-unit mode: off, collect, analyze"},
		{Name: "ctu.dir", Flag: "ctu-dir", Type: pipeline.PathConfigurationOption, Default: config.DefaultCTUDir, Description: "scratch directory for CTU AST dumps and fn-maps"},
		{Name: "ctu.retry_without_ctu", Flag: "ctu-retry-without-ctu", Type: pipeline.BoolConfigurationOption, Default: config.DefaultCTURetryWithoutCTU, Description: "retry a CTU-enabled failure once with CTU disabled"},
		{Name: "statistics.collect", Flag: "stats", Type: pipeline.BoolConfigurationOption, Default: config.DefaultStatisticsCollect, Description: "collect Clang SA statistics for relevance filtering"},
		{Name: "statistics.min_sample_count", Flag: "stats-min-sample-count", Type: pipeline.IntConfigurationOption, Default: config.DefaultStatisticsMinSampleCount, Description: "minimum sample count before a statistic is considered relevant"},
		{Name: "statistics.relevance_threshold", Flag: "stats-relevance-threshold", Type: pipeline.FloatConfigurationOption, Default: config.DefaultStatisticsRelevanceThreshold, Description: "relevance threshold in [0,1] for statistics filtering"},
		{Name: "analyzers.enabled", Flag: "analyzers", Type: pipeline.StringsConfigurationOption, Default: []string{}, Description: "analyzers to run; empty runs every discovered, compatible analyzer"},
		{Name: "analyzers.disabled", Flag: "disable-analyzer", Type: pipeline.StringsConfigurationOption, Default: []string{}, Description: "analyzers to exclude"},
		{Name: "checkers.enable_all", Flag: "enable-all", Type: pipeline.BoolConfigurationOption, Default: config.DefaultCheckersEnableAll, Description: "enable every checker except the alpha./debug. families"},
		{Name: "checkers.strict", Flag: "strict-checkers", Type: pipeline.BoolConfigurationOption, Default: config.DefaultCheckersStrict, Description: "treat an override that resolves to no checker as fatal"},
		{Name: "checkers.profile_path", Flag: "checker-profile", Type: pipeline.PathConfigurationOption, Default: config.DefaultCheckersProfilePath, Description: "YAML profile/guideline description file seeding the default profile"},
		{Name: "reproducer.always", Flag: "generate-reproducer-always", Type: pipeline.BoolConfigurationOption, Default: config.DefaultReproducerAlways, Description: "package a reproducer archive even for successful analyses"},
		{Name: "reproducer.size_limit", Flag: "reproducer-size-limit", Type: pipeline.StringConfigurationOption, Default: config.DefaultReproducerSizeLimit, Description: "largest source file embedded into a reproducer zip, e.g. 256MB"},
	}
}

// NewDescribeConfigCommand builds "describe-config": prints every
// top-level configuration key, its CLI flag, type, default, and
// description, for discoverability without reading source.
func NewDescribeConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe-config",
		Short: "Describe every configuration key and its CLI flag",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Key", "Flag", "Type", "Default", "Description"})

			for _, opt := range configOptions() {
				tbl.AppendRow(table.Row{opt.Name, "--" + opt.Flag, opt.Type.String(), opt.FormatDefault(), opt.Description})
			}

			tbl.Render()

			return nil
		},
	}
}
