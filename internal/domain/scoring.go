package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Score weights. These constants define ranking behavior and must not drift.
const (
	WeightJudge      = 0.70
	WeightKeyword    = 0.15
	WeightEngagement = 0.15

	WeightPopularity = 0.6
	WeightVelocity   = 0.2
	WeightRecency    = 0.2

	// SpamMultiplier is applied to candidates whose title or description
	// matches SpamTerms.
	SpamMultiplier = 0.3

	// RecencyDecayDays is the e-folding time of the recency boost.
	RecencyDecayDays = 60.0
)

// TravelKeywords are the title terms that earn the keyword bonus.
var TravelKeywords = []string{
	"travel", "hotel", "food", "view", "amazing",
	"visit", "city", "guide", "trip", "vacation",
}

// SpamTerms mark content that is rarely useful for trip planning.
var SpamTerms = []string{
	"prank", "challenge", "reaction", "storytime", "grwm", "ootd",
	"unboxing", "haul", "tiktok", "meme", "compilation", "funny",
	"exposed", "drama", "tea", "gossip",
}

// ScoreBreakdown records every term that contributed to a final score.
type ScoreBreakdown struct {
	Judge       float64 `json:"judge"`
	Keyword     float64 `json:"keyword"`
	Engagement  float64 `json:"engagement"`
	SpamPenalty float64 `json:"spam_penalty"`
	Final       float64 `json:"final"`
}

// Reason renders the breakdown as human-readable provenance.
func (b ScoreBreakdown) Reason() string {
	reason := fmt.Sprintf("judge=%.2f keyword=%.0f engagement=%.2f",
		b.Judge, b.Keyword, b.Engagement)
	if b.SpamPenalty < 1 {
		reason += fmt.Sprintf(" spam_penalty=%.1f", b.SpamPenalty)
	}
	return reason
}

// KeywordScore returns 1 when the lowercased title contains any travel
// keyword, otherwise 0.
func KeywordScore(title string) float64 {
	if containsAny(strings.ToLower(title), TravelKeywords) {
		return 1
	}
	return 0
}

// SpamPenalty returns SpamMultiplier when the title or description contains a
// spam term, otherwise 1.
func SpamPenalty(title, description string) float64 {
	if containsAny(strings.ToLower(title), SpamTerms) ||
		containsAny(strings.ToLower(description), SpamTerms) {
		return SpamMultiplier
	}
	return 1
}

// EngagementScore blends popularity, view velocity and upload recency into a
// value in [0, 1]. A negative daysSinceUpload means the upload time is unknown,
// in which case the velocity and recency terms contribute nothing.
func EngagementScore(views uint64, daysSinceUpload float64) float64 {
	v := float64(views)
	popularity := math.Min(math.Log10(v+1)/7, 1)

	if daysSinceUpload < 0 {
		return WeightPopularity * popularity
	}

	viewsPerDay := v / math.Max(daysSinceUpload, 1)
	velocity := math.Min(math.Log10(viewsPerDay+1)/5, 1)
	recency := math.Min(math.Exp(-daysSinceUpload/RecencyDecayDays), 1)

	return WeightPopularity*popularity + WeightVelocity*velocity + WeightRecency*recency
}

// FinalScore combines the weighted terms and applies the spam multiplier.
func FinalScore(judge, keyword, engagement, spamPenalty float64) float64 {
	return (WeightJudge*judge + WeightKeyword*keyword + WeightEngagement*engagement) * spamPenalty
}

// DaysSince returns fractional days between published and now, or -1 when
// published is unknown. Uploads stamped in the future count as day zero.
func DaysSince(published, now time.Time) float64 {
	if published.IsZero() {
		return -1
	}
	days := now.Sub(published).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// Score computes the full breakdown for one judged candidate.
func Score(c JudgedCandidate, now time.Time) ScoreBreakdown {
	b := ScoreBreakdown{
		Judge:       c.JudgeScore,
		Keyword:     KeywordScore(c.Title),
		Engagement:  EngagementScore(c.ViewCount, DaysSince(c.PublishedAt, now)),
		SpamPenalty: SpamPenalty(c.Title, c.Description),
	}
	b.Final = FinalScore(b.Judge, b.Keyword, b.Engagement, b.SpamPenalty)
	return b
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
