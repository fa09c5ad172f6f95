package application

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-reelscout/infrastructure/cache"
	"github.com/ahrav/go-reelscout/infrastructure/llm"
	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/infrastructure/units"
	"github.com/ahrav/go-reelscout/infrastructure/youtube"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// PipelineID names the search pipeline in logs and errors.
const PipelineID = "search"

// VideoProvider is everything the pipeline needs from the video platform.
type VideoProvider interface {
	ports.VideoSearcher
	ports.StatsFetcher
	ports.ChannelFetcher
	ports.TranscriptFetcher
}

// Deps carries process-wide collaborators into Build. Zero values are
// valid: no metrics, the global tracer, and real provider clients built
// from the config.
type Deps struct {
	Logger  zerolog.Logger
	Metrics *middleware.PrometheusMetrics
	Tracer  trace.Tracer

	// LLM and Videos replace the clients Build would construct.
	LLM    ports.LLMClient
	Videos VideoProvider

	// Cache replaces the backend selected by cfg.Cache.
	Cache ports.ResultCache
}

// Build assembles an orchestrator from cfg. The returned closer releases
// the cache connection, if any. Missing provider credentials are not an
// error: the orchestrator then serves the mock fixture.
func Build(ctx context.Context, cfg Config, deps Deps) (*Orchestrator, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log := deps.Logger

	var collector ports.MetricsCollector
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	resultCache := deps.Cache
	if resultCache == nil {
		c, err := cache.New(cfg.CacheOptions(), log)
		if err != nil {
			return nil, nil, fmt.Errorf("build cache: %w", err)
		}
		resultCache = c
	}
	closer := closerFor(resultCache)

	opts := []Option{
		WithCache(resultCache, cfg.Cache.TTL),
		WithMetrics(collector),
		WithRunTimeout(cfg.Pipeline.RunTimeout),
	}

	live := (deps.LLM != nil && deps.Videos != nil) || cfg.HasCredentials()
	if !live {
		log.Warn().Msg("YouTube or LLM API key missing, searches will return mock results")
		return NewOrchestrator(nil, log, opts...), closer, nil
	}

	llmClient := deps.LLM
	if llmClient == nil {
		c, err := newLLMClient(cfg.LLM, deps)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		llmClient = c
	}

	videos := deps.Videos
	if videos == nil {
		c, err := youtube.NewClient(ctx, youtube.Config{
			APIKey:            cfg.YouTube.APIKey,
			Endpoint:          cfg.YouTube.Endpoint,
			WatchBaseURL:      cfg.YouTube.WatchBaseURL,
			HTTPClient:        &http.Client{Timeout: cfg.YouTube.HTTPTimeout},
			RequestTimeout:    cfg.YouTube.RequestTimeout,
			RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
			Burst:             cfg.YouTube.Burst,
		}, log)
		if err != nil {
			_ = closer.Close()
			return nil, nil, fmt.Errorf("build youtube client: %w", err)
		}
		videos = c
	}

	pipeline, err := NewSearchPipeline(cfg.Pipeline, llmClient, videos,
		middleware.NewOTelStageObserver(deps.Tracer, collector, log), log)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	log.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Str("llm_model", llmClient.GetModel()).
		Str("cache", cfg.Cache.Backend).
		Strs("stages", pipeline.Stages()).
		Msg("search pipeline ready")
	return NewOrchestrator(pipeline, log, opts...), closer, nil
}

// NewSearchPipeline wires the seven stages in order: expand, retrieve,
// dedupe, enrich, transcripts, judge, rank.
func NewSearchPipeline(
	cfg PipelineConfig,
	llmClient ports.LLMClient,
	videos VideoProvider,
	observer middleware.StageObserver,
	logger zerolog.Logger,
) (*Pipeline, error) {
	expander, err := units.NewQueryExpander(llmClient, cfg.Expander, logger)
	if err != nil {
		return nil, err
	}
	retriever, err := units.NewCandidateRetriever(videos, cfg.Retriever, logger)
	if err != nil {
		return nil, err
	}
	enricher, err := units.NewMetadataEnricher(videos, videos, cfg.Enricher, logger)
	if err != nil {
		return nil, err
	}
	transcripts, err := units.NewTranscriptRetriever(videos, cfg.Transcripts, logger)
	if err != nil {
		return nil, err
	}
	judge, err := units.NewRelevanceJudge(llmClient, cfg.Judge, logger)
	if err != nil {
		return nil, err
	}

	p := NewPipeline(PipelineID, observer)
	for _, u := range []ports.Unit{
		expander,
		retriever,
		units.NewDeduplicator(logger),
		enricher,
		transcripts,
		judge,
		units.NewRanker(cfg.ResultLimit, logger),
	} {
		if err := p.Add(u); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newLLMClient(cfg LLMConfig, deps Deps) (ports.LLMClient, error) {
	stack := llm.StackDeps{
		Provider: cfg.Provider,
		Logger:   &deps.Logger,
		Tracer:   deps.Tracer,
	}
	if deps.Metrics != nil {
		stack.Metrics = deps.Metrics
		stack.BreakerMetrics = deps.Metrics
	}

	client, err := llm.NewClient(cfg.Provider, llm.ClientConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
		Middleware: llm.DefaultMiddleware(llm.Resilience{
			Retry: llm.RetryPolicy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.Retry.BaseDelay,
				MaxDelay:    cfg.Retry.MaxDelay,
			},
			AttemptTimeout:    cfg.AttemptTimeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			BreakerFailures:   cfg.Breaker.Failures,
			BreakerCooldown:   cfg.Breaker.Cooldown,
		}, stack),
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}
	return client, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// closerFor returns c's Close when the backend holds resources.
func closerFor(c ports.ResultCache) io.Closer {
	if cl, ok := c.(io.Closer); ok {
		return cl
	}
	return closerFunc(func() error { return nil })
}
