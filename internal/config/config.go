package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "sportstrivia/internal/utils"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one text generation backend. Type selects the
// client: "openai" for any OpenAI compatible endpoint, "anthropic" for the
// Messages API.
type ProviderConfig struct {
	Name             string    `json:"name" yaml:"name"`
	Code             string    `json:"code" yaml:"code" validate:"required"`
	Type             string    `json:"type" yaml:"type" validate:"required,oneof=openai anthropic"`
	URL              string    `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey           string    `json:"-" yaml:"api_key,omitempty"`
	SupportsGrammar  bool      `json:"supports_grammar,omitempty" yaml:"supports_grammar,omitempty"`
	SupportsJSONMode bool      `json:"supports_json_mode,omitempty" yaml:"supports_json_mode,omitempty"`
	Models           []AIModel `json:"models" yaml:"models"`
}

// AIModel represents an AI model with a display name and a code
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Config holds all configuration for the service
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`

	Database DatabaseConfig `json:"database" yaml:"database"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	Redis RedisConfig `json:"redis" yaml:"redis"`

	Providers []ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`

	Generation GenerationConfig `json:"generation" yaml:"generation"`

	Questions QuestionsConfig `json:"questions" yaml:"questions"`

	Preload PreloadConfig `json:"preload" yaml:"preload"`

	Worker WorkerConfig `json:"worker" yaml:"worker"`

	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Sports is the catalog of legal point values, prompt material and fallback questions.
	// When empty, the embedded default catalog is used.
	Sports map[string]SportConfig `json:"sports" yaml:"sports" validate:"required,dive"`

	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	WorkerPort  string   `json:"worker_port" yaml:"worker_port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// StorageConfig selects the question bank backend
type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `json:"driver" yaml:"driver" validate:"oneof=postgres memory"`
}

// RedisConfig configures the optional recent-texts cache. Mode is "single",
// "sentinel" or "cluster".
type RedisConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Mode            string        `json:"mode" yaml:"mode" validate:"omitempty,oneof=single sentinel cluster"`
	Addr            string        `json:"addr" yaml:"addr"`
	Addrs           []string      `json:"addrs" yaml:"addrs"`
	MasterName      string        `json:"master_name" yaml:"master_name"`
	Password        string        `json:"-" yaml:"password"`
	DB              int           `json:"db" yaml:"db"`
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`
	MinRetryBackoff time.Duration `json:"min_retry_backoff" yaml:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `json:"max_retry_backoff" yaml:"max_retry_backoff"`
	TTL             time.Duration `json:"ttl" yaml:"ttl"`
	KeyPrefix       string        `json:"key_prefix" yaml:"key_prefix"`
}

// GenerationConfig selects the provider and model used for question generation
type GenerationConfig struct {
	Provider      string        `json:"provider" yaml:"provider"`
	Model         string        `json:"model" yaml:"model"`
	APIKey        string        `json:"-" yaml:"api_key"`
	Temperature   float64       `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	MaxConcurrent int           `json:"max_concurrent" yaml:"max_concurrent"`
}

// QuestionsConfig holds the selection and dedup policy knobs
type QuestionsConfig struct {
	UsageCap              int           `json:"usage_cap" yaml:"usage_cap" validate:"gt=0"`
	FreshnessWindow       time.Duration `json:"freshness_window" yaml:"freshness_window" validate:"gte=0"`
	EligibleLimit         int           `json:"eligible_limit" yaml:"eligible_limit" validate:"gt=0"`
	RecentWindow          int           `json:"recent_window" yaml:"recent_window" validate:"gt=0"`
	PromptRecentCount     int           `json:"prompt_recent_count" yaml:"prompt_recent_count" validate:"gte=0"`
	DefaultDedupThreshold float64       `json:"default_dedup_threshold" yaml:"default_dedup_threshold" validate:"gt=0,lte=1"`
	MaxAttempts           int           `json:"max_attempts" yaml:"max_attempts" validate:"gt=0"`
}

// PreloadConfig controls the best-effort bank warm-up
type PreloadConfig struct {
	Disabled      bool          `json:"disabled" yaml:"disabled"`
	PerDifficulty int           `json:"per_difficulty" yaml:"per_difficulty" validate:"gt=0"`
	ChunkSize     int           `json:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
	Pacing        time.Duration `json:"pacing" yaml:"pacing"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

// WorkerConfig controls the background bank top-up worker
type WorkerConfig struct {
	Interval        time.Duration `json:"interval" yaml:"interval"`
	MinEligible     int           `json:"min_eligible" yaml:"min_eligible"`
	MaxPerRun       int           `json:"max_per_run" yaml:"max_per_run"`
	MaxHistory      int           `json:"max_history" yaml:"max_history"`
	MaxActivityLogs int           `json:"max_activity_logs" yaml:"max_activity_logs"`
}

// OpenTelemetryConfig holds OpenTelemetry configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Protocol       string            `json:"protocol" yaml:"protocol"` // "grpc" or "http"
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`
}

// NewConfig loads the config file, applies defaults and environment overrides, then validates
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// NewDefaultConfig returns a config with every default applied and no file or environment input
func NewDefaultConfig() (*Config, error) {
	c := &Config{}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the struct tags and the cross-field rules of the sports catalog
func (c *Config) Validate() error {
	if err := contextutils.ValidateStruct(c); err != nil {
		return err
	}
	for name, sport := range c.Sports {
		if err := sport.validateFallback(name); err != nil {
			return err
		}
	}
	return nil
}

// ActiveProvider returns the provider selected by generation.provider
func (c *Config) ActiveProvider() (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Code == c.Generation.Provider {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func (c *Config) applyDefaults() error {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.WorkerPort == "" {
		c.Server.WorkerPort = DefaultWorkerPort
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}

	if c.Redis.Mode == "" {
		c.Redis.Mode = "single"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRecentTextsTTL
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "trivia"
	}

	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = DefaultGenerationTemperature
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = DefaultGenerationMaxTokens
	}
	if c.Generation.Timeout == 0 {
		c.Generation.Timeout = AIRequestTimeout
	}
	if c.Generation.MaxConcurrent == 0 {
		c.Generation.MaxConcurrent = DefaultAIMaxConcurrent
	}

	q := &c.Questions
	if q.UsageCap == 0 {
		q.UsageCap = DefaultUsageCap
	}
	if q.FreshnessWindow == 0 {
		q.FreshnessWindow = DefaultFreshnessWindow
	}
	if q.EligibleLimit == 0 {
		q.EligibleLimit = DefaultEligibleLimit
	}
	if q.RecentWindow == 0 {
		q.RecentWindow = DefaultRecentWindow
	}
	if q.PromptRecentCount == 0 {
		q.PromptRecentCount = DefaultPromptRecentCount
	}
	if q.DefaultDedupThreshold == 0 {
		q.DefaultDedupThreshold = DefaultDedupThreshold
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = DefaultMaxGenerationAttempts
	}

	p := &c.Preload
	if p.PerDifficulty == 0 {
		p.PerDifficulty = DefaultPreloadPerDifficulty
	}
	if p.ChunkSize == 0 {
		p.ChunkSize = DefaultPreloadChunkSize
	}
	if p.Pacing == 0 {
		p.Pacing = DefaultPreloadPacing
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultPreloadTimeout
	}

	w := &c.Worker
	if w.Interval == 0 {
		w.Interval = WorkerCheckInterval
	}
	if w.MinEligible == 0 {
		w.MinEligible = 5
	}
	if w.MaxPerRun == 0 {
		w.MaxPerRun = 10
	}
	if w.MaxHistory == 0 {
		w.MaxHistory = 50
	}
	if w.MaxActivityLogs == 0 {
		w.MaxActivityLogs = 200
	}

	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}

	if len(c.Sports) == 0 {
		sports, err := DefaultSports()
		if err != nil {
			return err
		}
		c.Sports = sports
	}
	return nil
}

func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv uses reflection to override struct fields from environment variables.
// The variable name is the upper-cased yaml path, e.g. QUESTIONS_USAGE_CAP.
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					field.Set(reflect.ValueOf(strings.Split(envVal, ",")))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the file named by TRIVIA_CONFIG_FILE, or config.yaml.
// A missing default config.yaml yields an empty config that defaults fill in.
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	config, err := loadConfigFromFile("config.yaml")
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return config, err
}

func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
