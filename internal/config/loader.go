package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".codefang-analyze"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for codefang-analyze settings.
const envPrefix = "CODEFANGANALYZE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// When no config file is found in the search paths, defaults are used; an
// explicit configPath that cannot be read is an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("jobs", DefaultJobs)
	viperCfg.SetDefault("output_dir", DefaultOutputDir)
	viperCfg.SetDefault("timeout", DefaultTimeout)
	viperCfg.SetDefault("skip_list_path", "")

	viperCfg.SetDefault("dedup.policy", DefaultDedupPolicy)
	viperCfg.SetDefault("dedup.regex", DefaultDedupRegex)

	viperCfg.SetDefault("ctu.mode", DefaultCTUMode)
	viperCfg.SetDefault("ctu.dir", DefaultCTUDir)
	viperCfg.SetDefault("ctu.retry_without_ctu", DefaultCTURetryWithoutCTU)

	viperCfg.SetDefault("statistics.collect", DefaultStatisticsCollect)
	viperCfg.SetDefault("statistics.min_sample_count", DefaultStatisticsMinSampleCount)
	viperCfg.SetDefault("statistics.relevance_threshold", DefaultStatisticsRelevanceThreshold)

	viperCfg.SetDefault("analyzers.enabled", []string{})
	viperCfg.SetDefault("analyzers.disabled", []string{})

	viperCfg.SetDefault("checkers.enable_all", DefaultCheckersEnableAll)
	viperCfg.SetDefault("checkers.strict", DefaultCheckersStrict)
	viperCfg.SetDefault("checkers.profile_path", DefaultCheckersProfilePath)

	viperCfg.SetDefault("reproducer.always", DefaultReproducerAlways)
	viperCfg.SetDefault("reproducer.size_limit", DefaultReproducerSizeLimit)
}
