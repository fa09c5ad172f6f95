package units

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/llmjson"
	"github.com/ahrav/go-reelscout/internal/ports"
)

var _ ports.Unit = (*RelevanceJudge)(nil)

// Judge defaults.
const (
	DefaultJudgeTimeout     = 60 * time.Second
	DefaultJudgeTemperature = 0.0
	DefaultJudgeMaxTokens   = 1024

	// MaxIDDistance is the largest edit distance at which a reply id is
	// matched back to a submitted id.
	MaxIDDistance = 2
)

const defaultJudgePromptSource = `You are a JSON API that scores video relevance. You only respond with valid JSON, no explanations or markdown.

Task: score each video's travel relevance to the query {{quote .Query}}.

Scoring examples:
- "3 Days in Paris Itinerary | Best Places" for "Paris" -> 1.0 (itinerary, helpful for planning)
- "What I Ate in Tokyo | Street Food Tour" for "Tokyo" -> 1.0 (food travel guide)
- "Paris Cafe Aesthetic | Vlog Vibes" for "Paris" -> 0.5 (lifestyle content, partial travel)
- "Tokyo Ramen Tour" for "Paris" -> 0.0 (wrong location)
- "Paris Meme Compilation" for "Paris" -> 0.0 (not travel content)

Geographic rule: a video clearly about a different location than {{quote .Query}} scores 0.0. Check the title, description and transcript for location mentions.

Scoring:
- 1.0 = clearly about {{quote .Query}} and useful for travel (itinerary, places, food, tips)
- 0.5 = tangentially related (vibes, lifestyle, partial travel content)
- 0.0 = unrelated, off-topic, entertainment only, or about a different location

Videos:
{{range $i, $v := .Videos}}
[{{add $i 1}}] id: {{$v.ID}}
Title: {{quote $v.Title}}
Description: {{quote (excerpt $v.Description $.DescriptionLimit)}}
Transcript: {{quote $v.Transcript}}
{{end}}
Respond with only this JSON structure, one entry per video:
{"scores": [{"id": "VIDEO_ID", "score": SCORE}]}`

// JudgeConfig tunes the relevance judge.
type JudgeConfig struct {
	Timeout     time.Duration `yaml:"timeout" validate:"min=0"`
	Temperature float64       `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"min=1,max=16384"`

	// DescriptionLimit bounds each description in runes; zero sends the
	// whole description.
	DescriptionLimit int `yaml:"description_limit" validate:"min=0,max=5000"`
}

// DefaultJudgeConfig returns the production settings.
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Timeout:     DefaultJudgeTimeout,
		Temperature: DefaultJudgeTemperature,
		MaxTokens:   DefaultJudgeMaxTokens,
	}
}

// judgeEntry is one scored item in the model's reply.
type judgeEntry struct {
	ID    string   `json:"id" validate:"required"`
	Score *float64 `json:"score" validate:"required"`
}

// RelevanceJudge scores all candidates with one batched LLM request. It
// always returns one JudgedCandidate per input, in input order; anything
// the model failed to score gets domain.DefaultJudgeScore.
type RelevanceJudge struct {
	llm    ports.LLMClient
	config JudgeConfig
	prompt *template.Template
	logger zerolog.Logger
}

// NewRelevanceJudge creates a judge backed by llm.
func NewRelevanceJudge(llm ports.LLMClient, config JudgeConfig, logger zerolog.Logger) (*RelevanceJudge, error) {
	if llm == nil {
		return nil, fmt.Errorf("relevance judge: LLM client: %w", ErrMissingDependency)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("relevance judge: configuration validation failed: %w", err)
	}
	tmpl, err := template.New("judge").Funcs(promptFuncs()).Parse(defaultJudgePromptSource)
	if err != nil {
		return nil, fmt.Errorf("relevance judge: parse prompt: %w", err)
	}
	return &RelevanceJudge{llm: llm, config: config, prompt: tmpl, logger: logger}, nil
}

// Name implements ports.Unit.
func (j *RelevanceJudge) Name() string { return StageJudge }

// Validate implements ports.Unit.
func (j *RelevanceJudge) Validate() error {
	if j.llm == nil {
		return fmt.Errorf("unit %s: LLM client is not configured", StageJudge)
	}
	if j.llm.GetModel() == "" {
		return fmt.Errorf("unit %s: LLM client model is not configured", StageJudge)
	}
	return validate.Struct(j.config)
}

// Execute reads KeyQuery and KeyEnriched and writes KeyJudged.
func (j *RelevanceJudge) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	query, err := domain.Require(state, domain.KeyQuery)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageJudge, err)
	}
	enriched, err := domain.Require(state, domain.KeyEnriched)
	if err != nil {
		return state, fmt.Errorf("unit %s: %w", StageJudge, err)
	}
	judged := j.judge(ctx, query, enriched, runLogger(j.logger, StageJudge, state))
	return domain.With(state, domain.KeyJudged, judged), nil
}

// Judge scores candidates against query.
func (j *RelevanceJudge) Judge(ctx context.Context, query string, candidates []domain.EnrichedCandidate) []domain.JudgedCandidate {
	return j.judge(ctx, query, candidates, j.logger.With().Str("stage", StageJudge).Logger())
}

func (j *RelevanceJudge) judge(
	ctx context.Context,
	query string,
	candidates []domain.EnrichedCandidate,
	log zerolog.Logger,
) []domain.JudgedCandidate {
	if len(candidates) == 0 {
		return []domain.JudgedCandidate{}
	}

	scores := j.requestScores(ctx, query, candidates, log)

	out := make([]domain.JudgedCandidate, len(candidates))
	defaulted := 0
	for i, c := range candidates {
		score, ok := scores[c.ID]
		if !ok {
			score = domain.DefaultJudgeScore
			defaulted++
		}
		out[i] = c.WithScore(score)
	}
	if defaulted > 0 {
		log.Info().Int("defaulted", defaulted).Int("videos", len(out)).Msg("judge left videos unscored")
	}
	return out
}

// requestScores returns the scores the model produced keyed by submitted
// id. Any failure yields an empty map.
func (j *RelevanceJudge) requestScores(
	ctx context.Context,
	query string,
	candidates []domain.EnrichedCandidate,
	log zerolog.Logger,
) map[string]float64 {
	var buf bytes.Buffer
	if err := j.prompt.Execute(&buf, struct {
		Query            string
		Videos           []domain.EnrichedCandidate
		DescriptionLimit int
	}{Query: query, Videos: candidates, DescriptionLimit: j.config.DescriptionLimit}); err != nil {
		log.Error().Err(err).Msg("render judge prompt")
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	reply, err := j.llm.Complete(ctx, buf.String(), map[string]any{
		"temperature": j.config.Temperature,
		"max_tokens":  j.config.MaxTokens,
		"json":        true,
	})
	if err != nil {
		log.Warn().Err(ports.NewLLMError(j.llm.GetModel(), StageJudge, err)).Msg("relevance judging failed, using default scores")
		return nil
	}

	res := llmjson.Extract(reply, decodeJudgeEntries, llmjson.ObjectsFirst)
	if res.Kind != llmjson.Ok {
		log.Warn().Err(res.Reason).Int("reply_len", len(reply)).Msg("malformed judge reply, using default scores")
		return nil
	}

	submitted := make([]string, len(candidates))
	for i, c := range candidates {
		submitted[i] = c.ID
	}
	return matchScores(res.Value, submitted, log)
}

// decodeJudgeEntries accepts [{id,score}, ...] or {"scores": [...]}. Items
// that are not objects, lack an id, or carry a non-numeric score are
// dropped; only the overall shape is enforced.
func decodeJudgeEntries(raw []byte) ([]judgeEntry, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Scores *[]json.RawMessage `json:"scores"`
		}
		if werr := json.Unmarshal(raw, &wrapper); werr != nil {
			return nil, err
		}
		if wrapper.Scores == nil {
			return nil, fmt.Errorf("object has no scores array")
		}
		items = *wrapper.Scores
	}

	out := make([]judgeEntry, 0, len(items))
	for _, item := range items {
		var e judgeEntry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		if err := validate.Struct(e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// matchScores maps reply entries onto submitted ids. Exact ids are matched
// first; a leftover entry is then matched to the single unscored submitted
// id within MaxIDDistance edits, and dropped when there is none or more
// than one. The first score for an id wins.
func matchScores(entries []judgeEntry, submitted []string, log zerolog.Logger) map[string]float64 {
	known := make(map[string]struct{}, len(submitted))
	for _, id := range submitted {
		known[id] = struct{}{}
	}

	scores := make(map[string]float64, len(entries))
	var leftovers []judgeEntry
	for _, e := range entries {
		if _, ok := known[e.ID]; ok {
			if _, dup := scores[e.ID]; !dup {
				scores[e.ID] = *e.Score
			}
			continue
		}
		leftovers = append(leftovers, e)
	}

	for _, e := range leftovers {
		match := ""
		ambiguous := false
		for _, id := range submitted {
			if _, scored := scores[id]; scored {
				continue
			}
			if levenshtein.ComputeDistance(e.ID, id) > MaxIDDistance {
				continue
			}
			if match != "" {
				ambiguous = true
				break
			}
			match = id
		}
		if match == "" || ambiguous {
			log.Debug().Str("reply_id", e.ID).Bool("ambiguous", ambiguous).Msg("unmatched judge id dropped")
			continue
		}
		log.Debug().Str("reply_id", e.ID).Str("video_id", match).Msg("recovered mangled judge id")
		scores[match] = *e.Score
	}
	return scores
}
