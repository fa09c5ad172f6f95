package ports

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLLMError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewLLMError("gpt-4o-mini", "judge", ErrInvalidResponse)

		assert.Equal(t, "LLM error: model=gpt-4o-mini, operation=judge, err=invalid response", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &LLMError{Model: "m", Operation: "expand", Err: ErrRateLimited, RetryAfter: &retryAfter}

		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable classification", func(t *testing.T) {
		for _, base := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			assert.True(t, NewLLMError("m", "op", base).IsRetryable(), "%v should be retryable", base)
		}
		for _, base := range []error{ErrInvalidResponse, ErrAuthenticationFailed, ErrQuotaExceeded} {
			assert.False(t, NewLLMError("m", "op", base).IsRetryable(), "%v should not be retryable", base)
		}
	})
}

func TestVideoProviderError(t *testing.T) {
	tests := []struct {
		name    string
		err     *VideoProviderError
		wantMsg string
	}{
		{
			name:    "with status",
			err:     NewVideoProviderError("search", "lisbon #shorts", 403, ErrQuotaExceeded),
			wantMsg: `video provider error: operation=search, subject="lisbon #shorts", status=403, err=quota exceeded`,
		},
		{
			name:    "without status",
			err:     NewVideoProviderError("transcript", "abc123", 0, ErrNoCaptions),
			wantMsg: `video provider error: operation=transcript, subject="abc123", err=no captions available`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.err.Err, errors.Unwrap(tt.err))
		})
	}
}

func TestCacheAndConfigErrors(t *testing.T) {
	cacheErr := NewCacheError("reelscout:results:rome", "get", ErrCacheCorrupted)
	assert.Equal(t, "cache error: operation=get, key=reelscout:results:rome, err=cache corrupted", cacheErr.Error())
	assert.ErrorIs(t, cacheErr, ErrCacheCorrupted)

	cfgErr := NewConfigError("youtube.api_key", ErrConfigNotFound)
	assert.Equal(t, "config error: key=youtube.api_key, err=configuration not found", cfgErr.Error())
	assert.ErrorIs(t, cfgErr, ErrConfigNotFound)
}

func TestErrorUnwrapping_ThroughWrapping(t *testing.T) {
	inner := NewVideoProviderError("channels", "UC1", 500, ErrServiceUnavailable)
	wrapped := fmt.Errorf("enrich: %w", inner)

	var vpe *VideoProviderError
	assert.True(t, errors.As(wrapped, &vpe))
	assert.Equal(t, 500, vpe.StatusCode)
	assert.ErrorIs(t, wrapped, ErrServiceUnavailable)
}
