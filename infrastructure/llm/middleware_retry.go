package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, first attempt included.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// MaxDelay caps any single wait.
	MaxDelay time.Duration
}

// DefaultRetryPolicy is three attempts with a 2s base delay capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// retryLLM retries transient failures with exponential backoff and jitter.
type retryLLM struct {
	next   CoreLLM
	policy RetryPolicy
	jitter func() float64
}

// RetryMiddleware retries failed requests according to policy. It stops
// early on non-retryable errors, an open circuit, or a done context.
func RetryMiddleware(policy RetryPolicy) Middleware {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{next: next, policy: policy, jitter: rand.Float64}
	}
}

// DoRequest implements CoreLLM.
func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var (
		lastErr error
		made    int
	)

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		made++
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == r.policy.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, fmt.Errorf("retry aborted after %d attempts: %w", made, ctx.Err())
		case <-timer.C:
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", made, lastErr)
}

// delay returns BaseDelay·2^attempt with ±25% jitter, capped at MaxDelay.
func (r *retryLLM) delay(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	d := time.Duration(float64(r.policy.BaseDelay) * float64(uint64(1)<<uint(attempt)))
	d = d - d/4 + time.Duration(r.jitter()*float64(d)/2)
	if r.policy.MaxDelay > 0 && d > r.policy.MaxDelay {
		d = r.policy.MaxDelay
	}
	return d
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
