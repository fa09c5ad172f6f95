package domain_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/infrastructure/units"
	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
	"github.com/ahrav/go-reelscout/internal/testutils"
)

func TestStageSentinels(t *testing.T) {
	llm := testutils.NewMockLLMClient("mock", testutils.MockResponse{Response: `["lisbon food"]`})
	expander, err := units.NewQueryExpander(llm, units.DefaultExpanderConfig(), zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		name    string
		unit    ports.Unit
		state   domain.State
		wantErr error
	}{
		{
			name:    "expander rejects a whitespace query",
			unit:    expander,
			state:   domain.With(domain.NewState(), domain.KeyQuery, " \t "),
			wantErr: domain.ErrEmptyQuery,
		},
		{
			name:    "dedupe ends the run when nothing was retrieved",
			unit:    units.NewDeduplicator(zerolog.Nop()),
			state:   domain.With(domain.NewState(), domain.KeyCandidates, []domain.SearchCandidate{}),
			wantErr: domain.ErrNoCandidates,
		},
		{
			name:    "dedupe without retrieval output",
			unit:    units.NewDeduplicator(zerolog.Nop()),
			state:   domain.NewState(),
			wantErr: domain.ErrKeyNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When the stage runs on a state it cannot work with
			_, err := tt.unit.Execute(context.Background(), tt.state)

			// Then the domain sentinel reaches the caller intact
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, llm.Calls(), "a rejected query never reaches the model")
}
