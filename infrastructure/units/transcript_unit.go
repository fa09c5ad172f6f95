package units

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*TranscriptRetriever)(nil)

// Transcript defaults.
const (
	DefaultTranscriptConcurrency = 5
	DefaultTranscriptTimeout     = 8 * time.Second
)

// TranscriptConfig tunes transcript retrieval.
type TranscriptConfig struct {
	// Concurrency caps fetches in flight.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=50"`

	// Timeout bounds each fetch.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	// Limit is the maximum transcript length in runes.
	Limit int `yaml:"limit" validate:"min=1"`
}

// DefaultTranscriptConfig returns the production settings.
func DefaultTranscriptConfig() TranscriptConfig {
	return TranscriptConfig{
		Concurrency: DefaultTranscriptConcurrency,
		Timeout:     DefaultTranscriptTimeout,
		Limit:       domain.TranscriptLimit,
	}
}

// TranscriptRetriever attaches normalized caption text to candidates.
// Fetch failures leave the transcript empty.
type TranscriptRetriever struct {
	fetcher ports.TranscriptFetcher
	config  TranscriptConfig
	logger  zerolog.Logger
}

// NewTranscriptRetriever creates a retriever.
func NewTranscriptRetriever(fetcher ports.TranscriptFetcher, config TranscriptConfig, logger zerolog.Logger) (*TranscriptRetriever, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("transcript retriever: fetcher: %w", ErrMissingDependency)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("transcript retriever: configuration validation failed: %w", err)
	}
	return &TranscriptRetriever{fetcher: fetcher, config: config, logger: logger}, nil
}

// Name implements ports.Unit.
func (t *TranscriptRetriever) Name() string { return StageTranscripts }

// Validate implements ports.Unit.
func (t *TranscriptRetriever) Validate() error {
	if t.fetcher == nil {
		return fmt.Errorf("unit %s: fetcher is not configured", StageTranscripts)
	}
	return validate.Struct(t.config)
}

// Execute rewrites KeyEnriched with transcripts attached.
func (t *TranscriptRetriever) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	enriched, err := domain.Require(state, domain.KeyEnriched)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageTranscripts, err)
	}
	out := t.attach(ctx, enriched, runLogger(t.logger, StageTranscripts, state))
	return domain.With(state, domain.KeyEnriched, out), nil
}

// Attach returns a copy of enriched with Transcript filled in. Output order
// equals input order.
func (t *TranscriptRetriever) Attach(ctx context.Context, enriched []domain.EnrichedCandidate) []domain.EnrichedCandidate {
	return t.attach(ctx, enriched, t.logger.With().Str("stage", StageTranscripts).Logger())
}

func (t *TranscriptRetriever) attach(ctx context.Context, enriched []domain.EnrichedCandidate, log zerolog.Logger) []domain.EnrichedCandidate {
	out := make([]domain.EnrichedCandidate, len(enriched))
	copy(out, enriched)

	sem := semaphore.NewWeighted(int64(t.config.Concurrency))
	done := make(chan int, len(out))
	started := 0

	for i := range out {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Int("skipped", len(out)-i).Msg("transcript fetching cancelled")
			break
		}
		started++
		go func() {
			defer sem.Release(1)
			out[i].Transcript = t.fetch(ctx, out[i].ID, log)
			done <- i
		}()
	}

	missing := 0
	for range started {
		if out[<-done].Transcript == "" {
			missing++
		}
	}
	log.Debug().Int("videos", len(out)).Int("without_transcript", missing+len(out)-started).Msg("transcripts attached")
	return out
}

func (t *TranscriptRetriever) fetch(ctx context.Context, videoID string, log zerolog.Logger) string {
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}
	raw, err := t.fetcher.Transcript(ctx, videoID)
	if err != nil {
		log.Debug().Err(err).Str("video_id", videoID).Msg("no transcript")
		return ""
	}
	return NormalizeTranscript(raw, t.config.Limit)
}

// NormalizeTranscript NFC-normalizes and lowercases raw caption text,
// collapses whitespace runs to single spaces, and truncates to limit runes.
func NormalizeTranscript(raw string, limit int) string {
	// Casers carry state and must not be shared between goroutines.
	lower := cases.Lower(language.Und).String(norm.NFC.String(raw))
	return truncateRunes(strings.Join(strings.Fields(lower), " "), limit)
}
