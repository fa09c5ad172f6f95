package units

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*CandidateRetriever)(nil)

// Retriever defaults.
const (
	DefaultPhraseLimit      = 5
	DefaultResultsPerPhrase = 5
	DefaultSearchTimeout    = 10 * time.Second
	DefaultShortsSuffix     = " #shorts"
)

// RetrieverConfig tunes candidate retrieval.
type RetrieverConfig struct {
	// PhraseLimit is how many leading phrases are searched.
	PhraseLimit int `yaml:"phrase_limit" validate:"min=1,max=20"`

	ResultsPerPhrase int64 `yaml:"results_per_phrase" validate:"min=1,max=50"`

	// Timeout bounds each search call.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	// Suffix is appended to every phrase before searching.
	Suffix string `yaml:"suffix"`
}

// DefaultRetrieverConfig returns the production settings.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		PhraseLimit:      DefaultPhraseLimit,
		ResultsPerPhrase: DefaultResultsPerPhrase,
		Timeout:          DefaultSearchTimeout,
		Suffix:           DefaultShortsSuffix,
	}
}

// CandidateRetriever searches the video platform for every phrase
// concurrently. A failing phrase is logged and contributes nothing.
type CandidateRetriever struct {
	searcher ports.VideoSearcher
	config   RetrieverConfig
	logger   zerolog.Logger
}

// NewCandidateRetriever creates a retriever.
func NewCandidateRetriever(searcher ports.VideoSearcher, config RetrieverConfig, logger zerolog.Logger) (*CandidateRetriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("candidate retriever: searcher: %w", ErrMissingDependency)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("candidate retriever: configuration validation failed: %w", err)
	}
	return &CandidateRetriever{searcher: searcher, config: config, logger: logger}, nil
}

// Name implements ports.Unit.
func (r *CandidateRetriever) Name() string { return StageRetrieve }

// Validate implements ports.Unit.
func (r *CandidateRetriever) Validate() error {
	if r.searcher == nil {
		return fmt.Errorf("unit %s: searcher is not configured", StageRetrieve)
	}
	return validate.Struct(r.config)
}

// Execute reads KeyExpandedQueries and writes KeyCandidates.
func (r *CandidateRetriever) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	phrases, err := domain.Require(state, domain.KeyExpandedQueries)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageRetrieve, err)
	}
	found := r.retrieve(ctx, phrases, runLogger(r.logger, StageRetrieve, state))
	return domain.With(state, domain.KeyCandidates, found), nil
}

// Retrieve searches the first PhraseLimit phrases and concatenates the hits
// in phrase order. Duplicates are kept.
func (r *CandidateRetriever) Retrieve(ctx context.Context, phrases []string) []domain.SearchCandidate {
	return r.retrieve(ctx, phrases, r.logger.With().Str("stage", StageRetrieve).Logger())
}

func (r *CandidateRetriever) retrieve(ctx context.Context, phrases []string, log zerolog.Logger) []domain.SearchCandidate {
	if len(phrases) > r.config.PhraseLimit {
		phrases = phrases[:r.config.PhraseLimit]
	}

	perPhrase := make([][]domain.SearchCandidate, len(phrases))
	var g errgroup.Group
	for i, phrase := range phrases {
		g.Go(func() error {
			sctx := ctx
			if r.config.Timeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
				defer cancel()
			}
			hits, err := r.searcher.Search(sctx, ports.SearchQuery{
				Text:       phrase + r.config.Suffix,
				MaxResults: r.config.ResultsPerPhrase,
				ShortOnly:  true,
			})
			if err != nil {
				log.Warn().Err(err).Str("phrase", phrase).Msg("search failed, skipping phrase")
				return nil
			}
			perPhrase[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.SearchCandidate
	for _, hits := range perPhrase {
		out = append(out, hits...)
	}
	if out == nil {
		out = []domain.SearchCandidate{}
	}
	log.Debug().Int("phrases", len(phrases)).Int("candidates", len(out)).Msg("retrieval finished")
	return out
}
