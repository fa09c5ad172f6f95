package units

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*Ranker)(nil)

// Ranker scores judged candidates and keeps the best Limit of them.
type Ranker struct {
	limit  int
	now    func() time.Time
	logger zerolog.Logger
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithClock replaces time.Now as the reference time for recency.
func WithClock(now func() time.Time) RankerOption {
	return func(r *Ranker) { r.now = now }
}

// NewRanker creates a ranker. A non-positive limit means domain.MaxResults.
func NewRanker(limit int, logger zerolog.Logger, opts ...RankerOption) *Ranker {
	if limit <= 0 {
		limit = domain.MaxResults
	}
	r := &Ranker{limit: limit, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements ports.Unit.
func (r *Ranker) Name() string { return StageRank }

// Validate implements ports.Unit.
func (r *Ranker) Validate() error {
	if r.now == nil {
		return fmt.Errorf("unit %s: clock is not configured", StageRank)
	}
	return nil
}

// Execute reads KeyJudged and writes KeyResults.
func (r *Ranker) Execute(_ context.Context, state domain.State) (domain.State, error) {
	judged, err := domain.Require(state, domain.KeyJudged)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageRank, err)
	}
	results := r.Rank(judged)
	log := runLogger(r.logger, StageRank, state)
	if len(results) > 0 {
		log.Debug().Int("results", len(results)).Float64("top_score", results[0].RelevanceScore).Msg("ranked")
	}
	return domain.With(state, domain.KeyResults, results), nil
}

// Rank orders judged by final score, ties in input order.
func (r *Ranker) Rank(judged []domain.JudgedCandidate) []domain.RankedResult {
	return domain.Rank(judged, r.now(), r.limit)
}
