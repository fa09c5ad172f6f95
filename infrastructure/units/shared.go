// Package units implements the stages of the discovery pipeline. Each stage
// satisfies ports.Unit and also exposes its operation as a plain method so
// it can be driven without a State.
package units

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
)

// Stage names used for logging, metrics and spans.
const (
	StageExpand      = "expand"
	StageRetrieve    = "retrieve"
	StageDedupe      = "dedupe"
	StageEnrich      = "enrich"
	StageTranscripts = "transcripts"
	StageJudge       = "judge"
	StageRank        = "rank"
)

// Common construction errors.
var (
	// ErrMissingDependency is returned when a required port is nil.
	ErrMissingDependency = errors.New("missing dependency")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// runLogger tags base with the stage and, when the state carries one, the
// run id.
func runLogger(base zerolog.Logger, stage string, state domain.State) zerolog.Logger {
	ctx := base.With().Str("stage", stage)
	if id, ok := domain.Get(state, domain.KeyRunID); ok {
		ctx = ctx.Str("run_id", id)
	}
	return ctx.Logger()
}
