// Package domain contains pure, dependency-free domain models and scoring
// rules for the travel video discovery pipeline.
package domain

import "time"

// SearchCandidate is a raw video returned by the search provider.
// Candidates are immutable once deduplicated.
type SearchCandidate struct {
	// ID is the provider's unique video identifier.
	ID string `json:"id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// ThumbnailURL is the best thumbnail the search reply carried.
	ThumbnailURL string `json:"thumbnail_url"`

	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`

	// PublishedAt comes from the search snippet and is refined during
	// enrichment. The zero value means the upload time is unknown.
	PublishedAt time.Time `json:"published_at"`
}

// EnrichedCandidate is a SearchCandidate with statistics, channel avatar,
// and transcript attached. Every field that failed to resolve holds its
// safe default: zero views, nil duration, empty avatar, empty transcript.
type EnrichedCandidate struct {
	SearchCandidate

	ViewCount uint64 `json:"view_count"`

	// DurationSeconds is nil when the provider returned no parseable duration.
	DurationSeconds *int `json:"duration_seconds,omitempty"`

	ChannelAvatarURL string `json:"channel_avatar_url,omitempty"`

	// Transcript is lowercased caption text truncated to TranscriptLimit runes.
	Transcript string `json:"transcript,omitempty"`
}

// JudgedCandidate carries the relevance judge's verdict for one candidate.
type JudgedCandidate struct {
	EnrichedCandidate

	// JudgeScore is in [0, 1]. Candidates the judge did not score carry
	// DefaultJudgeScore.
	JudgeScore float64 `json:"judge_score"`
}

// RankedResult is the public output of a search.
type RankedResult struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Thumbnail        string  `json:"thumbnail"`
	ChannelTitle     string  `json:"channelTitle"`
	ViewCount        uint64  `json:"viewCount"`
	Duration         *int    `json:"duration,omitempty"`
	ChannelAvatarURL string  `json:"channelAvatarUrl,omitempty"`
	RelevanceScore   float64 `json:"relevanceScore"`

	// RelevanceReason is diagnostic provenance of the score and is not
	// meant to be parsed.
	RelevanceReason string `json:"relevanceReason"`
}

// CloneResults copies rs, including each result's Duration, so the copy
// shares no memory with rs. A nil slice stays nil.
func CloneResults(rs []RankedResult) []RankedResult {
	if rs == nil {
		return nil
	}
	out := make([]RankedResult, len(rs))
	for i, r := range rs {
		if r.Duration != nil {
			d := *r.Duration
			r.Duration = &d
		}
		out[i] = r
	}
	return out
}

// Pipeline limits shared by the stages.
const (
	// DefaultJudgeScore is assigned to any candidate the judge failed to score.
	DefaultJudgeScore = 0.5

	// TranscriptLimit caps transcript text handed to the judge.
	TranscriptLimit = 1000

	// MaxResults is the number of ranked results returned to callers.
	MaxResults = 12
)

// Enrich promotes a search candidate with no statistics attached.
func (c SearchCandidate) Enrich() EnrichedCandidate {
	return EnrichedCandidate{SearchCandidate: c}
}

// WithScore attaches a judge score, clamped to [0, 1].
func (c EnrichedCandidate) WithScore(score float64) JudgedCandidate {
	return JudgedCandidate{EnrichedCandidate: c, JudgeScore: clamp01(score)}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
