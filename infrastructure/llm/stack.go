package llm

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-reelscout/internal/ports"
)

// Resilience tunes the standard middleware stack.
type Resilience struct {
	Retry RetryPolicy

	// AttemptTimeout bounds a single attempt; zero disables it.
	AttemptTimeout time.Duration

	// RequestsPerSecond and Burst pace outbound requests; zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// DefaultResilience returns the policy used when configuration is silent.
func DefaultResilience() Resilience {
	return Resilience{
		Retry:             DefaultRetryPolicy(),
		RequestsPerSecond: 2,
		Burst:             4,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
	}
}

// StackDeps are the observability hooks threaded into the stack. Zero
// values disable the corresponding layer.
type StackDeps struct {
	Provider       string
	Logger         *zerolog.Logger
	Metrics        ports.MetricsCollector
	Tracer         trace.Tracer
	BreakerMetrics CircuitBreakerMetrics
}

// DefaultMiddleware assembles, outermost first: tracing, metrics, logging,
// retry, circuit breaker, rate limit, per-attempt timeout. An open circuit
// ends the retry loop at once; every attempt is paced.
func DefaultMiddleware(r Resilience, deps StackDeps) []Middleware {
	stack := []Middleware{TracingMiddleware(deps.Provider, deps.Tracer)}
	if deps.Metrics != nil {
		stack = append(stack, MetricsMiddleware(deps.Provider, deps.Metrics))
	}
	if deps.Logger != nil {
		stack = append(stack, LoggingMiddleware(*deps.Logger))
	}
	stack = append(stack, RetryMiddleware(r.Retry))
	if r.BreakerFailures > 0 {
		stack = append(stack, CircuitBreakerMiddleware(r.BreakerFailures, r.BreakerCooldown, deps.BreakerMetrics))
	}
	if r.RequestsPerSecond > 0 {
		stack = append(stack, RateLimitMiddleware(rate.Limit(r.RequestsPerSecond), r.Burst))
	}
	if r.AttemptTimeout > 0 {
		stack = append(stack, TimeoutMiddleware(r.AttemptTimeout))
	}
	return stack
}
