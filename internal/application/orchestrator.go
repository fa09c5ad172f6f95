package application

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-reelscout/infrastructure/cache"
	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// Search sources recorded on the searches counter.
const (
	SourceEmpty  = "empty"
	SourceMock   = "mock"
	SourceCache  = "cache"
	SourceLive   = "live"
	SourceFailed = "failed"
)

// Orchestrator answers search queries. It owns every short circuit and is
// the only place pipeline errors stop: Search never fails, it returns an
// empty list and logs why.
type Orchestrator struct {
	pipeline   *Pipeline
	cache      ports.ResultCache
	cacheTTL   time.Duration
	runTimeout time.Duration
	metrics    ports.MetricsCollector
	logger     zerolog.Logger
	newRunID   func() string
	now        func() time.Time
	flight     singleflight.Group
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache memoizes non-empty live results for ttl. A zero ttl uses the
// backend default.
func WithCache(c ports.ResultCache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
		o.cacheTTL = ttl
	}
}

// WithMetrics records searches and result counts on m.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRunTimeout bounds each live pipeline run.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.runTimeout = d }
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// WithNow overrides the clock used for run start times.
func WithNow(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// NewOrchestrator creates an orchestrator around pipeline. A nil pipeline
// means provider credentials are missing: every search is answered with
// MockResults.
func NewOrchestrator(pipeline *Pipeline, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pipeline: pipeline,
		cache:    cache.Nop{},
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Live reports whether searches reach the providers.
func (o *Orchestrator) Live() bool { return o.pipeline != nil }

// Search returns up to the configured limit of ranked videos for query.
// The result is never nil. Concurrent searches for the same normalized
// query share one pipeline run; that run is bound to the context of the
// caller that started it.
func (o *Orchestrator) Search(ctx context.Context, query string) []domain.RankedResult {
	q := strings.TrimSpace(query)
	if q == "" {
		o.logger.Debug().Msg("empty query")
		o.record(SourceEmpty, 0)
		return []domain.RankedResult{}
	}

	if o.pipeline == nil {
		o.logger.Warn().Str("query", q).Msg("provider credentials missing, serving mock results")
		results := MockResults(q)
		o.record(SourceMock, len(results))
		return results
	}

	key := cache.Key(q)
	if results, ok := o.lookup(ctx, key); ok {
		o.record(SourceCache, len(results))
		return results
	}

	v, _, shared := o.flight.Do(key, func() (any, error) {
		return o.run(ctx, q, key), nil
	})
	results := v.([]domain.RankedResult)
	if shared {
		o.logger.Debug().Str("query", q).Msg("joined in-flight search")
		results = domain.CloneResults(results)
	}
	return results
}

func (o *Orchestrator) lookup(ctx context.Context, key string) ([]domain.RankedResult, bool) {
	results, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		o.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !ok || results == nil {
		return nil, false
	}
	return results, true
}

// run executes the pipeline once and always returns a non-nil slice.
func (o *Orchestrator) run(ctx context.Context, query, key string) (results []domain.RankedResult) {
	runID := o.newRunID()
	log := o.logger.With().Str("run_id", runID).Str("query", query).Logger()
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("search panicked")
			results = []domain.RankedResult{}
			o.record(SourceFailed, 0)
		}
	}()

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	state := domain.NewRunState(domain.RunContext{RunID: runID, Query: query, StartedAt: start})
	out, err := o.pipeline.Execute(ctx, state)
	switch {
	case errors.Is(err, domain.ErrNoCandidates):
		log.Info().Msg("no candidates retrieved")
		o.record(SourceLive, 0)
		return []domain.RankedResult{}
	case err != nil:
		event := log.Error().Err(err)
		var pe *middleware.PanicError
		if errors.As(err, &pe) {
			event = event.Str("stage", pe.Stage).Bytes("stack", pe.Stack)
		}
		event.Msg("search failed")
		o.record(SourceFailed, 0)
		return []domain.RankedResult{}
	}

	results, err = domain.Require(out, domain.KeyResults)
	if err != nil {
		log.Error().Err(err).Msg("pipeline produced no results key")
		o.record(SourceFailed, 0)
		return []domain.RankedResult{}
	}
	if results == nil {
		results = []domain.RankedResult{}
	}

	if len(results) > 0 {
		if err := o.cache.Set(ctx, key, results, o.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("cache write failed")
		}
	}

	log.Info().
		Int("results", len(results)).
		Dur("elapsed", o.now().Sub(start)).
		Msg("search completed")
	o.record(SourceLive, len(results))
	return results
}

func (o *Orchestrator) record(source string, n int) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordCounter(middleware.MetricSearches, 1, map[string]string{"source": source})
	o.metrics.RecordHistogram(middleware.MetricResults, float64(n), nil)
}
