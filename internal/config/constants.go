package config

import "time"

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "TRIVIA_CONFIG_FILE"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	AIRequestTimeout      = 2 * time.Minute
	ServerShutdownTimeout = 30 * time.Second
	WorkerShutdownTimeout = 30 * time.Second
	PreloadDrainTimeout   = 15 * time.Second
	TelemetryFlushTimeout = 5 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
	DatabasePingTimeout     = 5 * time.Second

	// Worker timeouts
	WorkerCheckInterval = 5 * time.Minute
	WorkerRunTimeout    = 15 * time.Minute
)

// Server defaults
const (
	DefaultServerPort = "8080"
	DefaultWorkerPort = "8081"
)

// Question policy defaults
const (
	DefaultUsageCap              = 3
	DefaultFreshnessWindow       = 24 * time.Hour
	DefaultEligibleLimit         = 10
	DefaultRecentWindow          = 150
	DefaultPromptRecentCount     = 5
	DefaultDedupThreshold        = 0.7
	DefaultMaxGenerationAttempts = 3
	DefaultRecentTextsTTL        = 2 * time.Minute
)

// Generation defaults
const (
	DefaultGenerationTemperature = 0.7
	DefaultGenerationMaxTokens   = 1024
	DefaultAIMaxConcurrent       = 4
)

// Preload defaults
const (
	DefaultPreloadPerDifficulty = 15
	DefaultPreloadChunkSize     = 3
	DefaultPreloadPacing        = time.Second
	DefaultPreloadTimeout       = 10 * time.Minute
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
