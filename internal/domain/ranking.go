package domain

import (
	"sort"
	"time"
)

// Dedupe collapses candidates sharing an ID. The later occurrence's fields
// win while the output keeps the order in which each ID was first seen.
func Dedupe(candidates []SearchCandidate) []SearchCandidate {
	if len(candidates) == 0 {
		return []SearchCandidate{}
	}

	index := make(map[string]int, len(candidates))
	out := make([]SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		if i, seen := index[c.ID]; seen {
			out[i] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

// Rank scores every candidate, sorts by final score descending and truncates
// to limit. Ties keep their input order. A non-positive limit means
// MaxResults.
func Rank(judged []JudgedCandidate, now time.Time, limit int) []RankedResult {
	if limit <= 0 {
		limit = MaxResults
	}

	type scored struct {
		c JudgedCandidate
		b ScoreBreakdown
	}
	all := make([]scored, len(judged))
	for i, c := range judged {
		all[i] = scored{c: c, b: Score(c, now)}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].b.Final > all[j].b.Final
	})

	if len(all) > limit {
		all = all[:limit]
	}

	results := make([]RankedResult, len(all))
	for i, s := range all {
		results[i] = RankedResult{
			ID:               s.c.ID,
			Title:            s.c.Title,
			Thumbnail:        s.c.ThumbnailURL,
			ChannelTitle:     s.c.ChannelTitle,
			ViewCount:        s.c.ViewCount,
			Duration:         s.c.DurationSeconds,
			ChannelAvatarURL: s.c.ChannelAvatarURL,
			RelevanceScore:   s.b.Final,
			RelevanceReason:  s.b.Reason(),
		}
	}
	return results
}
