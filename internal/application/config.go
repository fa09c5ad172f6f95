package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-reelscout/infrastructure/cache"
	"github.com/ahrav/go-reelscout/infrastructure/units"
	"github.com/ahrav/go-reelscout/infrastructure/youtube"
	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// Config is the complete runtime configuration of the search service.
// A YAML file is decoded over DefaultConfig, so keys the file omits keep
// their defaults. Environment variables are applied last.
type Config struct {
	// YouTube configures the Data API client and the caption fetcher.
	YouTube YouTubeConfig `yaml:"youtube"`

	// LLM selects the provider used for query expansion and judging.
	LLM LLMConfig `yaml:"llm"`

	// Pipeline tunes the individual stages.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Cache selects where ranked results are memoized.
	Cache CacheConfig `yaml:"cache"`

	// Observability controls logging and the metrics listener.
	Observability ObservabilityConfig `yaml:"observability"`
}

// YouTubeConfig configures the video provider adapters.
type YouTubeConfig struct {
	// APIKey authenticates Data API requests. When empty, searches return
	// the mock fixture.
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the Data API base URL.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// WatchBaseURL overrides the watch page origin used for captions.
	WatchBaseURL string `yaml:"watch_base_url" validate:"omitempty,url"`

	// HTTPTimeout bounds watch page and caption downloads.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"min=0"`

	// RequestTimeout bounds each Data API call; zero means the client
	// default.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"min=0"`

	// RequestsPerSecond and Burst pace every outbound call; zero disables
	// pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// LLMConfig configures the text-generation client.
type LLMConfig struct {
	// Provider is one of the registered llm providers.
	Provider string `yaml:"provider" validate:"required,llmprovider"`

	// APIKey authenticates provider requests. When empty, searches return
	// the mock fixture.
	APIKey string `yaml:"api_key"`

	Model string `yaml:"model" validate:"required,min=1,max=200"`

	// BaseURL points the openai provider at a compatible endpoint.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// HTTPTimeout bounds the SDK's HTTP client.
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"min=0"`

	// AttemptTimeout bounds a single attempt inside the retry loop.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"min=0"`

	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`

	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RetryConfig is the LLM retry policy.
type RetryConfig struct {
	// MaxAttempts counts the first attempt.
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"min=0,gtefield=BaseDelay"`
}

// BreakerConfig tunes the LLM circuit breaker. Zero failures disables it.
type BreakerConfig struct {
	Failures int           `yaml:"failures" validate:"min=0,max=100"`
	Cooldown time.Duration `yaml:"cooldown" validate:"min=0"`
}

// PipelineConfig tunes the stages.
type PipelineConfig struct {
	Expander    units.ExpanderConfig   `yaml:"expander"`
	Retriever   units.RetrieverConfig  `yaml:"retriever"`
	Enricher    units.EnricherConfig   `yaml:"enricher"`
	Transcripts units.TranscriptConfig `yaml:"transcripts"`
	Judge       units.JudgeConfig      `yaml:"judge"`

	// ResultLimit caps the ranked list.
	ResultLimit int `yaml:"result_limit" validate:"min=1,max=50"`

	// RunTimeout bounds one whole search; zero leaves only the per-stage
	// timeouts.
	RunTimeout time.Duration `yaml:"run_timeout" validate:"min=0"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"omitempty,oneof=none memory redis"`
	TTL        time.Duration `yaml:"ttl" validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
	RedisURL   string        `yaml:"redis_url" validate:"required_if=Backend redis,omitempty,url"`
}

// ObservabilityConfig controls logging and the HTTP listener.
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error"`

	// ListenAddr is where serve exposes /search and /metrics.
	ListenAddr string `yaml:"listen_addr" validate:"required,hostname_port"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	retry := RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	return Config{
		YouTube: YouTubeConfig{
			HTTPTimeout:       30 * time.Second,
			RequestTimeout:    youtube.DefaultRequestTimeout,
			RequestsPerSecond: 10,
			Burst:             10,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			HTTPTimeout:       90 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
			Retry:             retry,
			Breaker:           BreakerConfig{Failures: 5, Cooldown: 30 * time.Second},
		},
		Pipeline: PipelineConfig{
			Expander:    units.DefaultExpanderConfig(),
			Retriever:   units.DefaultRetrieverConfig(),
			Enricher:    units.DefaultEnricherConfig(),
			Transcripts: units.DefaultTranscriptConfig(),
			Judge:       units.DefaultJudgeConfig(),
			ResultLimit: domain.MaxResults,
		},
		Cache: CacheConfig{
			Backend:    cache.BackendNone,
			TTL:        cache.DefaultTTL,
			MaxEntries: 512,
		},
		Observability: ObservabilityConfig{
			LogLevel:   "info",
			ListenAddr: "127.0.0.1:8080",
		},
	}
}

// ApplyEnv overlays environment variables on c. Unset variables keep the
// current value.
func (c *Config) ApplyEnv() {
	c.YouTube.APIKey = env.Str("YOUTUBE_API_KEY", c.YouTube.APIKey)

	c.LLM.Provider = env.Str("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.APIKey = env.Str("LLM_API_KEY", c.LLM.APIKey)
	c.LLM.Model = env.Str("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = env.Str("LLM_BASE_URL", c.LLM.BaseURL)

	c.Cache.Backend = env.Str("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.TTL = env.Duration("CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisURL = env.Str("REDIS_URL", c.Cache.RedisURL)

	c.Observability.LogLevel = env.Str("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.ListenAddr = env.Str("LISTEN_ADDR", c.Observability.ListenAddr)
}

// Validate checks every field constraint. Field failures are collected
// into a domain.ValidationError that wraps ErrInvalidConfiguration.
func (c Config) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	verr := domain.NewValidationError("config")
	for _, f := range fields {
		verr.AddError(fmt.Sprintf("%s failed %q (value %v)", f.Namespace(), f.Tag(), f.Value()))
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, verr)
}

// HasCredentials reports whether both provider keys are present. Without
// them the orchestrator serves the mock fixture.
func (c Config) HasCredentials() bool {
	return c.YouTube.APIKey != "" && c.LLM.APIKey != ""
}

// CacheOptions converts the cache section for cache.New.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:    c.Cache.Backend,
		TTL:        c.Cache.TTL,
		MaxEntries: c.Cache.MaxEntries,
		RedisURL:   c.Cache.RedisURL,
	}
}

// PrepareConfig is the configfile prepare hook: it applies the environment
// and validates. v must be a *Config.
func PrepareConfig(v any) error {
	cfg, ok := v.(*Config)
	if !ok {
		return fmt.Errorf("prepare config: unexpected type %T", v)
	}
	cfg.ApplyEnv()
	return cfg.Validate()
}

// NewDefaultConfig returns a pointer to fresh defaults, for use as a
// configfile factory.
func NewDefaultConfig() any {
	cfg := DefaultConfig()
	return &cfg
}

// LoadConfig decodes loader's source over the defaults. The loader is
// expected to run PrepareConfig; a loader without a file still yields
// defaults plus environment.
func LoadConfig(ctx context.Context, loader ports.ConfigLoader) (Config, error) {
	cfg := DefaultConfig()
	if err := loader.Load(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
