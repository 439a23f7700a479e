// Package config provides viper-backed configuration for the
// codefang-analyze driver.
package config

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
)

// DedupPolicyName selects the Action deduplication strategy applied by the
// log parser when two compile commands share a source.
type DedupPolicyName string

// Deduplication policy names, chosen by configuration as spec.md §4.2
// requires.
const (
	DedupNone   DedupPolicyName = "none"
	DedupStrict DedupPolicyName = "strict"
	DedupAlpha  DedupPolicyName = "alpha"
	DedupRegex  DedupPolicyName = "regex"
)

// CTUMode selects the Clang SA cross-translation-unit analysis phase.
type CTUMode string

// CTU modes.
const (
	CTUModeOff     CTUMode = "off"
	CTUModeCollect CTUMode = "collect"
	CTUModeAnalyze CTUMode = "analyze"
)

// Config is the top-level configuration struct for codefang-analyze.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Jobs         int              `mapstructure:"jobs"`
	OutputDir    string           `mapstructure:"output_dir"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	SkipListPath string           `mapstructure:"skip_list_path"`
	Dedup        DedupConfig      `mapstructure:"dedup"`
	CTU          CTUConfig        `mapstructure:"ctu"`
	Statistics   StatisticsConfig `mapstructure:"statistics"`
	Analyzers    AnalyzersConfig  `mapstructure:"analyzers"`
	Checkers     CheckersConfig   `mapstructure:"checkers"`
	Reproducer   ReproducerConfig `mapstructure:"reproducer"`
}

// DedupConfig holds deduplication-policy settings.
type DedupConfig struct {
	Policy DedupPolicyName `mapstructure:"policy"`
	Regex  string          `mapstructure:"regex"`
}

// CTUConfig holds cross-translation-unit pre-pass settings.
type CTUConfig struct {
	Mode            CTUMode `mapstructure:"mode"`
	Dir             string  `mapstructure:"dir"`
	RetryWithoutCTU bool    `mapstructure:"retry_without_ctu"`
}

// StatisticsConfig holds the Clang SA statistics-collection pre-pass
// settings.
type StatisticsConfig struct {
	Collect            bool    `mapstructure:"collect"`
	MinSampleCount     int     `mapstructure:"min_sample_count"`
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
}

// AnalyzersConfig holds per-analyzer enable/disable toggles. A name in
// Disabled never runs; when Enabled is non-empty only the names it lists
// run, otherwise every discovered, compatible analyzer runs.
type AnalyzersConfig struct {
	Enabled  []string `mapstructure:"enabled"`
	Disabled []string `mapstructure:"disabled"`
}

// CheckersConfig holds checker-enablement seeding settings shared by every
// discovered analyzer's registry.
type CheckersConfig struct {
	// EnableAll enables every checker except the alpha./debug. (and, off
	// Mach-O hosts, osx.) families.
	EnableAll bool `mapstructure:"enable_all"`
	// Strict makes an override identifier that resolves to no checker a
	// fatal error instead of a warning.
	Strict bool `mapstructure:"strict"`
	// ProfilePath points at a YAML profile/guideline description file used
	// to seed the default profile and resolve profile identifiers.
	ProfilePath string `mapstructure:"profile_path"`
}

// ReproducerConfig holds reproducer-archive generation settings.
type ReproducerConfig struct {
	Always bool `mapstructure:"always"`
	// SizeLimit bounds each source file embedded into a reproducer zip, in
	// humanize format (e.g. "256MB", "1GiB"). Empty disables the limit.
	SizeLimit string `mapstructure:"size_limit"`
}

// ReproducerSizeLimitBytes parses Reproducer.SizeLimit. An empty limit
// returns 0, meaning unlimited.
func (c *Config) ReproducerSizeLimitBytes() (uint64, error) {
	if c.Reproducer.SizeLimit == "" {
		return 0, nil
	}

	limit, err := humanize.ParseBytes(c.Reproducer.SizeLimit)
	if err != nil {
		return 0, ErrInvalidReproducerSizeLimit
	}

	return limit, nil
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidJobs indicates a negative jobs value; 0 means "use the
	// CPU count".
	ErrInvalidJobs = errors.New("jobs must be non-negative")
	// ErrMissingOutputDir indicates output_dir was not set.
	ErrMissingOutputDir = errors.New("output_dir must be set")
	// ErrInvalidTimeout indicates a negative timeout was configured.
	ErrInvalidTimeout = errors.New("timeout must be non-negative")
	// ErrInvalidDedupPolicy indicates an unrecognized dedup.policy value.
	ErrInvalidDedupPolicy = errors.New("dedup.policy must be one of none, strict, alpha, regex")
	// ErrMissingDedupRegex indicates dedup.policy is regex but dedup.regex is empty.
	ErrMissingDedupRegex = errors.New("dedup.regex must be set when dedup.policy is regex")
	// ErrInvalidCTUMode indicates an unrecognized ctu.mode value.
	ErrInvalidCTUMode = errors.New("ctu.mode must be one of off, collect, analyze")
	// ErrMissingCTUDir indicates ctu.mode is not off but ctu.dir is empty.
	ErrMissingCTUDir = errors.New("ctu.dir must be set when ctu.mode is not off")
	// ErrInvalidStatsMinSampleCount indicates a non-positive min_sample_count.
	ErrInvalidStatsMinSampleCount = errors.New("statistics.min_sample_count must be positive")
	// ErrInvalidStatsRelevanceThreshold indicates a threshold outside [0,1].
	ErrInvalidStatsRelevanceThreshold = errors.New("statistics.relevance_threshold must be between 0 and 1")
	// ErrInvalidReproducerSizeLimit indicates reproducer.size_limit is not a
	// parseable byte size.
	ErrInvalidReproducerSizeLimit = errors.New("reproducer.size_limit must be a byte size like 256MB or 1GiB")
)

// relevanceThresholdMax is the upper bound for the statistics relevance
// threshold.
const relevanceThresholdMax = 1.0

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if err := c.validateCore(); err != nil {
		return err
	}

	if err := c.validateDedup(); err != nil {
		return err
	}

	if err := c.validateCTU(); err != nil {
		return err
	}

	if err := c.validateStatistics(); err != nil {
		return err
	}

	_, err := c.ReproducerSizeLimitBytes()

	return err
}

func (c *Config) validateCore() error {
	if c.Jobs < 0 {
		return ErrInvalidJobs
	}

	if c.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	return nil
}

func (c *Config) validateDedup() error {
	switch c.Dedup.Policy {
	case DedupNone, DedupStrict, DedupAlpha:
	case DedupRegex:
		if c.Dedup.Regex == "" {
			return ErrMissingDedupRegex
		}
	default:
		return ErrInvalidDedupPolicy
	}

	return nil
}

func (c *Config) validateCTU() error {
	switch c.CTU.Mode {
	case CTUModeOff:
	case CTUModeCollect, CTUModeAnalyze:
		if c.CTU.Dir == "" {
			return ErrMissingCTUDir
		}
	default:
		return ErrInvalidCTUMode
	}

	return nil
}

func (c *Config) validateStatistics() error {
	if !c.Statistics.Collect {
		return nil
	}

	if c.Statistics.MinSampleCount <= 0 {
		return ErrInvalidStatsMinSampleCount
	}

	if c.Statistics.RelevanceThreshold < 0 || c.Statistics.RelevanceThreshold > relevanceThresholdMax {
		return ErrInvalidStatsRelevanceThreshold
	}

	return nil
}

// AnalyzerEnabled reports whether the named analyzer should run: absent
// from Disabled, and present in Enabled when Enabled is non-empty.
func (c *Config) AnalyzerEnabled(name string) bool {
	for _, d := range c.Analyzers.Disabled {
		if d == name {
			return false
		}
	}

	if len(c.Analyzers.Enabled) == 0 {
		return true
	}

	for _, e := range c.Analyzers.Enabled {
		if e == name {
			return true
		}
	}

	return false
}
