package units

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/llmjson"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*QueryExpander)(nil)

// Expander defaults.
const (
	DefaultMaxExpansions      = 10
	DefaultExpandTimeout      = 30 * time.Second
	DefaultExpandTemperature  = 0.2
	DefaultExpandMaxTokens    = 300
	defaultExpandPromptSource = `You are a JSON API that generates YouTube search queries. You only respond with valid JSON, no explanations or markdown.

Task: generate {{.Count}} alternative YouTube search queries for travel shorts about {{quote .Query}}.

Requirements:
- Every query must name {{quote .Query}} or be directly about it.
- Keep queries short: 3 to 6 words each.
- Focus on travel content for that place: itineraries, places, food, guides, vlogs.
- Good examples: "{{.Query}} travel guide", "best places {{.Query}}", "{{.Query}} food tour", "things to do {{.Query}}".
- Do not generate generic queries without the location.

Respond with only this JSON structure:
{"queries": ["query1", "query2", "..."]}`
)

var errNoPhrases = errors.New("reply contained no usable phrases")

// ExpanderConfig tunes the query expander.
type ExpanderConfig struct {
	// MaxPhrases caps the number of phrases kept from the reply.
	MaxPhrases int `yaml:"max_phrases" validate:"min=1,max=10"`

	// Timeout bounds the LLM call.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=1,max=4096"`
}

// DefaultExpanderConfig returns the production settings.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		MaxPhrases:  DefaultMaxExpansions,
		Timeout:     DefaultExpandTimeout,
		Temperature: DefaultExpandTemperature,
		MaxTokens:   DefaultExpandMaxTokens,
	}
}

// QueryExpander turns one user query into several destination-anchored
// search phrases. It never fails: every fault degrades to the original
// query alone.
type QueryExpander struct {
	llm    ports.LLMClient
	config ExpanderConfig
	prompt *template.Template
	logger zerolog.Logger
}

// NewQueryExpander creates an expander backed by llm.
func NewQueryExpander(llm ports.LLMClient, config ExpanderConfig, logger zerolog.Logger) (*QueryExpander, error) {
	if llm == nil {
		return nil, fmt.Errorf("query expander: LLM client: %w", ErrMissingDependency)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("query expander: configuration validation failed: %w", err)
	}
	tmpl, err := template.New("expand").Funcs(promptFuncs()).Parse(defaultExpandPromptSource)
	if err != nil {
		return nil, fmt.Errorf("query expander: parse prompt: %w", err)
	}
	return &QueryExpander{llm: llm, config: config, prompt: tmpl, logger: logger}, nil
}

// Name implements ports.Unit.
func (e *QueryExpander) Name() string { return StageExpand }

// Validate implements ports.Unit.
func (e *QueryExpander) Validate() error {
	if e.llm == nil {
		return fmt.Errorf("unit %s: LLM client is not configured", StageExpand)
	}
	return validate.Struct(e.config)
}

// Execute reads KeyQuery and writes KeyExpandedQueries.
func (e *QueryExpander) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	query, err := domain.Require(state, domain.KeyQuery)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageExpand, err)
	}
	if strings.TrimSpace(query) == "" {
		return state, fmt.Errorf("unit %s: %w", StageExpand, domain.ErrEmptyQuery)
	}
	phrases := e.expand(ctx, query, runLogger(e.logger, StageExpand, state))
	return domain.With(state, domain.KeyExpandedQueries, phrases), nil
}

// Expand returns up to MaxPhrases phrases for query, or [query] when the
// model fails or replies with nothing usable. The result is never empty.
func (e *QueryExpander) Expand(ctx context.Context, query string) []string {
	return e.expand(ctx, query, e.logger.With().Str("stage", StageExpand).Logger())
}

func (e *QueryExpander) expand(ctx context.Context, query string, log zerolog.Logger) []string {
	fallback := []string{query}

	var buf bytes.Buffer
	if err := e.prompt.Execute(&buf, struct {
		Query string
		Count int
	}{Query: query, Count: e.config.MaxPhrases}); err != nil {
		log.Error().Err(err).Msg("render expansion prompt")
		return fallback
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	reply, err := e.llm.Complete(ctx, buf.String(), map[string]any{
		"temperature": e.config.Temperature,
		"max_tokens":  e.config.MaxTokens,
		"json":        true,
	})
	if err != nil {
		log.Warn().Err(ports.NewLLMError(e.llm.GetModel(), StageExpand, err)).Msg("query expansion failed, using original query")
		return fallback
	}

	res := llmjson.Extract(reply, decodePhrases, llmjson.FirstOpening)
	if res.Kind != llmjson.Ok {
		log.Warn().Err(res.Reason).Int("reply_len", len(reply)).Msg("malformed expansion reply, using original query")
		return fallback
	}

	phrases := res.Value
	if len(phrases) > e.config.MaxPhrases {
		phrases = phrases[:e.config.MaxPhrases]
	}
	log.Debug().Int("phrases", len(phrases)).Str("strategy", string(res.Strategy)).Msg("query expanded")
	return phrases
}

// decodePhrases accepts a JSON array or an object with a "queries" array.
// Non-string elements are dropped and strings are trimmed; a reply with no
// non-empty strings is rejected so the scan can try the next span.
func decodePhrases(raw []byte) ([]string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		q, ok := t["queries"].([]any)
		if !ok {
			return nil, fmt.Errorf("object has no queries array")
		}
		items = q
	default:
		return nil, fmt.Errorf("unexpected JSON type %T", v)
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errNoPhrases
	}
	return out, nil
}
