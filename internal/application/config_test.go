package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/infrastructure/cache"
	"github.com/ahrav/go-reelscout/infrastructure/configfile"
	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Expander.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.Judge.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.Retriever.Timeout)
	assert.Equal(t, 8*time.Second, cfg.Pipeline.Transcripts.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.Enricher.Timeout)
	assert.Equal(t, 10*time.Second, cfg.YouTube.RequestTimeout)
	assert.Equal(t, 5, cfg.Pipeline.Transcripts.Concurrency)
	assert.Equal(t, 5, cfg.Pipeline.Retriever.PhraseLimit)
	assert.Equal(t, int64(5), cfg.Pipeline.Retriever.ResultsPerPhrase)
	assert.Equal(t, 10, cfg.Pipeline.Expander.MaxPhrases)
	assert.Equal(t, 12, cfg.Pipeline.ResultLimit)
	assert.Equal(t, RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}, cfg.LLM.Retry)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, cache.BackendNone, cfg.Cache.Backend)
	assert.False(t, cfg.HasCredentials())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "cohere" }},
		{name: "missing model", mutate: func(c *Config) { c.LLM.Model = "" }},
		{name: "bad base url", mutate: func(c *Config) { c.LLM.BaseURL = "not a url" }},
		{name: "retry cap below base", mutate: func(c *Config) { c.LLM.Retry.MaxDelay = time.Second }},
		{name: "zero attempts", mutate: func(c *Config) { c.LLM.Retry.MaxAttempts = 0 }},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }},
		{name: "redis without url", mutate: func(c *Config) { c.Cache.Backend = cache.BackendRedis }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Pipeline.Transcripts.Concurrency = 0 }},
		{name: "zero result limit", mutate: func(c *Config) { c.Pipeline.ResultLimit = 0 }},
		{name: "bad log level", mutate: func(c *Config) { c.Observability.LogLevel = "loud" }},
		{name: "bad listen address", mutate: func(c *Config) { c.Observability.ListenAddr = "localhost" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}

	t.Run("failures name the field", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Pipeline.ResultLimit = 0
		cfg.LLM.Provider = "cohere"

		err := cfg.Validate()

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Errors, 2)
		assert.Contains(t, err.Error(), "Config.Pipeline.ResultLimit")
		assert.Contains(t, err.Error(), "llmprovider")
	})

	t.Run("every registered provider accepted", func(t *testing.T) {
		for _, p := range []string{"openai", "anthropic", "google"} {
			cfg := DefaultConfig()
			cfg.LLM.Provider = p
			assert.NoError(t, cfg.Validate(), p)
		}
	})
}

func TestConfig_ApplyEnv(t *testing.T) {
	// Given provider settings in the environment
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	// When applied over the defaults
	cfg := DefaultConfig()
	cfg.ApplyEnv()

	// Then every variable lands in its field
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, "google", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai/", cfg.LLM.BaseURL)
	assert.Equal(t, cache.Options{
		Backend:    "redis",
		TTL:        15 * time.Minute,
		MaxEntries: 512,
		RedisURL:   "redis://localhost:6379/0",
	}, cfg.CacheOptions())
}

func TestLoadConfig(t *testing.T) {
	t.Run("file over defaults", func(t *testing.T) {
		// Given a file overriding a few keys
		path := filepath.Join(t.TempDir(), "reelscout.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
pipeline:
  result_limit: 6
  judge:
    timeout: 45s
cache:
  backend: memory
`), 0o600))
		loader := configfile.New(path, zerolog.Nop(), configfile.WithPrepare(PrepareConfig))

		// When loading
		cfg, err := LoadConfig(context.Background(), loader)

		// Then the file wins where it speaks and defaults fill the rest
		require.NoError(t, err)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
		assert.Equal(t, 6, cfg.Pipeline.ResultLimit)
		assert.Equal(t, 45*time.Second, cfg.Pipeline.Judge.Timeout)
		assert.Equal(t, 1024, cfg.Pipeline.Judge.MaxTokens)
		assert.Equal(t, 30*time.Second, cfg.Pipeline.Expander.Timeout)
		assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reelscout.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  result_limit: 500\n"), 0o600))
		loader := configfile.New(path, zerolog.Nop(), configfile.WithPrepare(PrepareConfig))

		_, err := LoadConfig(context.Background(), loader)

		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reelscout.yaml")
		require.NoError(t, os.WriteFile(path, []byte("llm:\n  temprature: 1\n"), 0o600))
		loader := configfile.New(path, zerolog.Nop(), configfile.WithPrepare(PrepareConfig))

		_, err := LoadConfig(context.Background(), loader)

		var cfgErr *ports.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("no file yields defaults", func(t *testing.T) {
		loader := configfile.New("", zerolog.Nop(), configfile.WithPrepare(PrepareConfig))

		cfg, err := LoadConfig(context.Background(), loader)

		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Pipeline, cfg.Pipeline)
	})
}

func TestPrepareConfig_RejectsOtherTypes(t *testing.T) {
	assert.Error(t, PrepareConfig(&struct{}{}))
	_, ok := NewDefaultConfig().(*Config)
	assert.True(t, ok)
}
