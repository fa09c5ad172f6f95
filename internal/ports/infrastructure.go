package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-reelscout/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers. Implementations handle authentication, request
// formatting, retries and timeouts.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider and returns
	// the generated text.
	//
	// Common options:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string
	//   - "system": string
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// SearchQuery describes one video search request.
type SearchQuery struct {
	// Text is the full query string sent to the provider, qualifier included.
	Text string

	// MaxResults caps the number of returned items.
	MaxResults int64

	// ShortOnly restricts results to short-duration videos.
	ShortOnly bool
}

// VideoSearcher runs text searches against the video platform.
type VideoSearcher interface {
	Search(ctx context.Context, q SearchQuery) ([]domain.SearchCandidate, error)
}

// VideoStats is the statistics record for one video.
type VideoStats struct {
	ID        string
	ViewCount uint64

	// Duration is the raw ISO-8601 token, for example "PT1M5S".
	Duration    string
	ChannelID   string
	PublishedAt time.Time
}

// StatsFetcher bulk-fetches statistics. Implementations split id lists at
// the provider's batch ceiling. IDs the provider does not know are omitted
// from the result.
type StatsFetcher interface {
	VideoStats(ctx context.Context, ids []string) (map[string]VideoStats, error)
}

// ChannelFetcher bulk-fetches channel avatars keyed by channel ID. A failed
// batch is skipped, so the returned map may be partial even when err is nil.
type ChannelFetcher interface {
	ChannelAvatars(ctx context.Context, channelIDs []string) (map[string]string, error)
}

// TranscriptFetcher returns the concatenated caption text of one video.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// ResultCache memoizes ranked results per query.
type ResultCache interface {
	// Get returns the cached results and true on a hit.
	Get(ctx context.Context, key string) ([]domain.RankedResult, bool, error)

	// Set stores results for ttl. A zero ttl means the backend default.
	Set(ctx context.Context, key string, results []domain.RankedResult, ttl time.Duration) error
}

// MetricsCollector defines the interface for collecting operational metrics.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ConfigLoader defines the interface for loading configuration.
type ConfigLoader interface {
	// Load reads configuration from the underlying source into config,
	// which must be a pointer to a struct.
	Load(ctx context.Context, config any) error

	// Watch calls callback with a freshly loaded config every time the
	// source changes. The returned stop function releases the watcher.
	//
	//	stop, err := loader.Watch(ctx, &cfg, func(updated any) {
	//	    // rebuild dependents
	//	})
	//	defer stop()
	Watch(ctx context.Context, config any, callback func(any)) (stop func(), err error)
}
