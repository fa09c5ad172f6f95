package units

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/internal/domain"
)

func TestRanker_Rank(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	judged := make([]domain.JudgedCandidate, 0, 15)
	for i := range 15 {
		c := domain.SearchCandidate{
			ID:          fmt.Sprintf("v%02d", i),
			Title:       "clip",
			PublishedAt: now.AddDate(0, 0, -i),
		}.Enrich()
		judged = append(judged, c.WithScore(float64(i%3)/2))
	}

	t.Run("top twelve non-increasing", func(t *testing.T) {
		r := NewRanker(0, zerolog.Nop(), WithClock(func() time.Time { return now }))

		got := r.Rank(judged)

		require.Len(t, got, domain.MaxResults)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].RelevanceScore, got[i].RelevanceScore)
		}
		assert.Equal(t, "v02", got[0].ID, "highest judge score, newest upload")
	})

	t.Run("clock drives recency", func(t *testing.T) {
		pair := []domain.JudgedCandidate{
			domain.SearchCandidate{ID: "old", PublishedAt: now.AddDate(-1, 0, 0)}.Enrich().WithScore(0.5),
			domain.SearchCandidate{ID: "new", PublishedAt: now}.Enrich().WithScore(0.5),
		}
		r := NewRanker(2, zerolog.Nop(), WithClock(func() time.Time { return now }))

		got := r.Rank(pair)

		assert.Equal(t, "new", got[0].ID)
	})
}

func TestRanker_Execute(t *testing.T) {
	r := NewRanker(3, zerolog.Nop())
	require.NoError(t, r.Validate())
	state := domain.With(domain.NewState(), domain.KeyJudged, []domain.JudgedCandidate{
		domain.SearchCandidate{ID: "a"}.Enrich().WithScore(0.2),
		domain.SearchCandidate{ID: "b"}.Enrich().WithScore(0.9),
	})

	out, err := r.Execute(context.Background(), state)

	require.NoError(t, err)
	results, ok := domain.Get(out, domain.KeyResults)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.NotEmpty(t, results[0].RelevanceReason)

	_, err = r.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}
