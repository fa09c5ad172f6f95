package llm

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-reelscout/internal/ports"
)

func TestTimeoutMiddleware(t *testing.T) {
	t.Run("bounds slow requests", func(t *testing.T) {
		// Given a provider slower than the timeout
		core := newFakeCore()
		core.delay = time.Second
		wrapped := TimeoutMiddleware(20 * time.Millisecond)(core)

		// When a request is made
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

		// Then it fails with a deadline error
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("non-positive timeout is a pass-through", func(t *testing.T) {
		core := newFakeCore()
		wrapped := TimeoutMiddleware(0)(core)

		assert.Same(t, core, wrapped)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	// Given a limiter with a burst of one and a slow refill
	core := newFakeCore()
	wrapped := RateLimitMiddleware(rate.Every(time.Hour), 1)(core)

	// When the burst is spent
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	// Then the next caller waits until its context expires
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, core.callCount())
}

func TestMetricsMiddleware(t *testing.T) {
	t.Run("records tokens on success", func(t *testing.T) {
		collector := newRecordingCollector()
		wrapped := MetricsMiddleware("openai", collector)(newFakeCore())

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

		require.NoError(t, err)
		assert.Equal(t, 1.0, collector.counters[MetricLLMRequests])
		assert.Equal(t, 30.0, collector.counters[MetricLLMTokens])
		assert.Equal(t, 1, collector.histograms[MetricLLMLatency])
		assert.Equal(t, "success", collector.labels[MetricLLMRequests][0]["status"])
		assert.Equal(t, "fake-model", collector.labels[MetricLLMRequests][0]["model"])
	})

	t.Run("labels failures by type", func(t *testing.T) {
		collector := newRecordingCollector()
		core := newFakeCore(NewProviderError("openai", ErrorTypeRateLimit, 429, "", nil))
		wrapped := MetricsMiddleware("openai", collector)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

		assert.ErrorIs(t, err, ports.ErrRateLimited)
		assert.Equal(t, "rate_limit", collector.labels[MetricLLMRequests][0]["status"])
		assert.Zero(t, collector.counters[MetricLLMTokens])
	})

	t.Run("nil collector is a pass-through", func(t *testing.T) {
		core := newFakeCore()
		assert.Same(t, core, MetricsMiddleware("openai", nil)(core))
	})
}

func TestTracingMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		errs    []error
		wantErr error
	}{
		{name: "success"},
		{name: "failure", errs: []error{errSimulated}, wantErr: errSimulated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a traced provider using a no-op tracer
			core := newFakeCore(tt.errs...)
			wrapped := TracingMiddleware("google", noop.NewTracerProvider().Tracer("test"))(core)

			// When a request is made
			resp, in, out, err := wrapped.DoRequest(context.Background(), "prompt", nil)

			// Then results pass through untouched
			assert.Equal(t, 1, core.callCount())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", resp)
			assert.Equal(t, 10, in)
			assert.Equal(t, 20, out)
		})
	}

	t.Run("nil tracer falls back to the global provider", func(t *testing.T) {
		wrapped := TracingMiddleware("google", nil)(newFakeCore())
		wrapped.SetModel("other")
		assert.Equal(t, "other", wrapped.GetModel())
	})
}

func TestLoggingMiddleware(t *testing.T) {
	// Given a logger writing to a buffer
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	core := newFakeCore(NewProviderError("anthropic", ErrorTypeServerError, 529, "", nil))
	wrapped := LoggingMiddleware(logger)(core)

	// When one request fails and the next succeeds
	_, _, _, _ = wrapped.DoRequest(context.Background(), "p", nil)
	_, _, _, _ = wrapped.DoRequest(context.Background(), "p", nil)

	// Then both outcomes are logged with their levels
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"error_type":"server_error"`)
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, `"tokens_out":20`)
}

func TestDefaultMiddleware_Composition(t *testing.T) {
	// Given the standard stack with fast retries and no pacing
	r := DefaultResilience()
	r.Retry = fastPolicy()
	r.RequestsPerSecond = 0
	collector := newRecordingCollector()
	logger := zerolog.Nop()

	core := newFakeCore(errSimulated)
	client := NewClientFromCore(core, nil, DefaultMiddleware(r, StackDeps{
		Provider: "openai",
		Logger:   &logger,
		Metrics:  collector,
	})...)

	// When a request fails once and then succeeds
	resp, err := client.Complete(context.Background(), "p", nil)

	// Then retries happen inside the metrics layer
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 2, core.callCount())
	assert.Equal(t, 1.0, collector.counters[MetricLLMRequests])
}

func TestProviderError_Classification(t *testing.T) {
	c := ErrorClassifier{Provider: "openai"}

	tests := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{401, ErrorTypeAuthentication, false},
		{403, ErrorTypeAuthentication, false},
		{404, ErrorTypeNotFound, false},
		{408, ErrorTypeTimeout, true},
		{422, ErrorTypeBadRequest, false},
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeServerError, true},
		{529, ErrorTypeServerError, true},
	}
	for _, tt := range tests {
		pe := c.ClassifyHTTPError(tt.status, "msg", nil)
		assert.Equal(t, tt.wantType, pe.Type, "status %d", tt.status)
		assert.Equal(t, tt.retryable, pe.IsRetryable(), "status %d", tt.status)
	}

	assert.Equal(t, ErrorTypeTimeout, c.ClassifyContextError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeCanceled, c.ClassifyContextError(context.Canceled).Type)
	assert.False(t, isRetryable(c.ClassifyContextError(context.Canceled)))
	assert.True(t, isRetryable(errSimulated))
}
