package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"PT1H2M10S", 3730, true},
		{"PT45S", 45, true},
		{"PT2M", 120, true},
		{"PT1H", 3600, true},
		{"PT0S", 0, true},
		{"P1DT1S", 86401, true},
		{"", 0, false},
		{"   ", 0, false},
		{"P", 0, false},
		{"PT", 0, false},
		{"1H2M", 0, false},
		{"PT1X", 0, false},
		{"PT5", 0, false},
		{"P1M", 0, false},
		{"PTH", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseISODuration(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDurationPtr(t *testing.T) {
	assert.Nil(t, DurationPtr(""))

	got := DurationPtr("PT59S")
	require.NotNil(t, got)
	assert.Equal(t, 59, *got)
}
