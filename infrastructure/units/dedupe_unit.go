package units

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*Deduplicator)(nil)

// Deduplicator collapses repeated video IDs in KeyCandidates. It reports
// domain.ErrNoCandidates when nothing survives, which ends the run early.
type Deduplicator struct {
	logger zerolog.Logger
}

// NewDeduplicator creates the dedupe stage.
func NewDeduplicator(logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{logger: logger}
}

// Name implements ports.Unit.
func (d *Deduplicator) Name() string { return StageDedupe }

// Validate implements ports.Unit.
func (d *Deduplicator) Validate() error { return nil }

// Execute rewrites KeyCandidates with one entry per ID.
func (d *Deduplicator) Execute(_ context.Context, state domain.State) (domain.State, error) {
	candidates, err := domain.Require(state, domain.KeyCandidates)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageDedupe, err)
	}

	unique := domain.Dedupe(candidates)
	log := runLogger(d.logger, StageDedupe, state)
	log.Debug().Int("in", len(candidates)).Int("out", len(unique)).Msg("candidates deduplicated")

	if len(unique) == 0 {
		return domain.With(state, domain.KeyCandidates, unique), domain.ErrNoCandidates
	}
	return domain.With(state, domain.KeyCandidates, unique), nil
}
