package config

import "time"

// Core defaults.
const (
	DefaultJobs      = 0 // 0 means "use runtime.NumCPU()" at the call site.
	DefaultOutputDir = "./codefang-analyze-reports"
	DefaultTimeout   = 0 * time.Second
)

// Dedup defaults.
const (
	DefaultDedupPolicy = DedupNone
	DefaultDedupRegex  = ""
)

// CTU defaults.
const (
	DefaultCTUMode            = CTUModeOff
	DefaultCTUDir             = ""
	DefaultCTURetryWithoutCTU = false
)

// Statistics defaults.
const (
	DefaultStatisticsCollect            = false
	DefaultStatisticsMinSampleCount     = 10
	DefaultStatisticsRelevanceThreshold = 0.85
)

// Checkers defaults.
const (
	DefaultCheckersEnableAll   = false
	DefaultCheckersStrict      = false
	DefaultCheckersProfilePath = ""
)

// Reproducer defaults.
const (
	DefaultReproducerAlways    = false
	DefaultReproducerSizeLimit = "1GiB"
)
