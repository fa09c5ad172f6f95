package units

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*MetadataEnricher)(nil)

// DefaultEnrichTimeout bounds the statistics step and the avatar step.
const DefaultEnrichTimeout = 10 * time.Second

// EnricherConfig tunes metadata enrichment.
type EnricherConfig struct {
	// Timeout bounds each of the two lookups; zero disables the bound.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// DefaultEnricherConfig returns the production settings.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{Timeout: DefaultEnrichTimeout}
}

// MetadataEnricher attaches statistics and channel avatars. It never
// fails: a missing statistic or avatar leaves the field at its zero value.
type MetadataEnricher struct {
	stats    ports.StatsFetcher
	channels ports.ChannelFetcher
	config   EnricherConfig
	logger   zerolog.Logger
}

// NewMetadataEnricher creates an enricher.
func NewMetadataEnricher(
	stats ports.StatsFetcher,
	channels ports.ChannelFetcher,
	config EnricherConfig,
	logger zerolog.Logger,
) (*MetadataEnricher, error) {
	if stats == nil {
		return nil, fmt.Errorf("metadata enricher: stats fetcher: %w", ErrMissingDependency)
	}
	if channels == nil {
		return nil, fmt.Errorf("metadata enricher: channel fetcher: %w", ErrMissingDependency)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("metadata enricher: configuration validation failed: %w", err)
	}
	return &MetadataEnricher{stats: stats, channels: channels, config: config, logger: logger}, nil
}

// Name implements ports.Unit.
func (m *MetadataEnricher) Name() string { return StageEnrich }

// Validate implements ports.Unit.
func (m *MetadataEnricher) Validate() error {
	if m.stats == nil || m.channels == nil {
		return fmt.Errorf("unit %s: fetchers are not configured", StageEnrich)
	}
	return validate.Struct(m.config)
}

// Execute reads KeyCandidates and writes KeyEnriched.
func (m *MetadataEnricher) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	candidates, err := domain.Require(state, domain.KeyCandidates)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageEnrich, err)
	}
	enriched := m.enrich(ctx, candidates, runLogger(m.logger, StageEnrich, state))
	return domain.With(state, domain.KeyEnriched, enriched), nil
}

// Enrich returns one EnrichedCandidate per input, in input order.
func (m *MetadataEnricher) Enrich(ctx context.Context, candidates []domain.SearchCandidate) []domain.EnrichedCandidate {
	return m.enrich(ctx, candidates, m.logger.With().Str("stage", StageEnrich).Logger())
}

func (m *MetadataEnricher) enrich(ctx context.Context, candidates []domain.SearchCandidate, log zerolog.Logger) []domain.EnrichedCandidate {
	out := make([]domain.EnrichedCandidate, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		out[i] = c.Enrich()
	}

	stats, err := m.videoStats(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int("videos", len(ids)).Msg("statistics unavailable, using defaults")
		stats = nil
	}

	for i := range out {
		s, ok := stats[out[i].ID]
		if !ok {
			continue
		}
		out[i].ViewCount = s.ViewCount
		out[i].DurationSeconds = domain.DurationPtr(s.Duration)
		if s.ChannelID != "" {
			out[i].ChannelID = s.ChannelID
		}
		if !s.PublishedAt.IsZero() {
			out[i].PublishedAt = s.PublishedAt
		}
	}

	seen := make(map[string]struct{}, len(out))
	channelIDs := make([]string, 0, len(out))
	for _, c := range out {
		if c.ChannelID == "" {
			continue
		}
		if _, dup := seen[c.ChannelID]; dup {
			continue
		}
		seen[c.ChannelID] = struct{}{}
		channelIDs = append(channelIDs, c.ChannelID)
	}
	if len(channelIDs) == 0 {
		return out
	}

	avatars, err := m.channelAvatars(ctx, channelIDs)
	if err != nil {
		log.Warn().Err(err).Int("channels", len(channelIDs)).Msg("channel avatars unavailable")
	}
	for i := range out {
		out[i].ChannelAvatarURL = avatars[out[i].ChannelID]
	}

	log.Debug().
		Int("videos", len(out)).
		Int("with_stats", len(stats)).
		Int("with_avatar", len(avatars)).
		Msg("metadata enriched")
	return out
}

func (m *MetadataEnricher) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.config.Timeout)
}

func (m *MetadataEnricher) videoStats(ctx context.Context, ids []string) (map[string]ports.VideoStats, error) {
	ctx, cancel := m.bounded(ctx)
	defer cancel()
	return m.stats.VideoStats(ctx, ids)
}

func (m *MetadataEnricher) channelAvatars(ctx context.Context, channelIDs []string) (map[string]string, error) {
	ctx, cancel := m.bounded(ctx)
	defer cancel()
	return m.channels.ChannelAvatars(ctx, channelIDs)
}
