package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the breaker's current mode.
type CircuitBreakerState int

const (
	// StateClosed passes every request through.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a single trial request.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerMetrics observes breaker transitions.
type CircuitBreakerMetrics interface {
	RecordState(state CircuitBreakerState)
	RecordTrip()
	RecordSuccess()
	RecordFailure()
}

// CircuitBreaker opens after maxFailures consecutive failures and admits one
// trial after cooldown. The lock is never held while the protected call runs.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	maxFailures  int
	cooldown     time.Duration
	openedAt     time.Time
	trialRunning bool
	now          func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// allow reports whether a call may proceed and whether it is the half-open
// trial.
func (cb *CircuitBreaker) allow() (ok, trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.trialRunning = true
		return true, true
	case StateHalfOpen:
		if cb.trialRunning {
			return false, false
		}
		cb.trialRunning = true
		return true, true
	default:
		return true, false
	}
}

func (cb *CircuitBreaker) record(err error, trial bool) (tripped bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialRunning = false
	}
	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return false
	}

	// Caller cancellation says nothing about provider health.
	if errors.Is(err, context.Canceled) {
		if trial {
			cb.state = StateOpen
		}
		return false
	}

	cb.failures++
	if trial || cb.failures >= cb.maxFailures {
		tripped = cb.state != StateOpen
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
	return tripped
}

// Call runs fn through the breaker.
func (cb *CircuitBreaker) Call(fn func() error) error {
	ok, trial := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err, trial)
	return err
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next    CoreLLM
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware opens after maxFailures consecutive failures and
// stays open for cooldown. metrics may be nil.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb, metrics: metrics}
	}
}

// DoRequest implements CoreLLM.
func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ok, trial := c.cb.allow()
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordState(StateOpen)
		}
		return "", 0, 0, ErrCircuitOpen
	}

	response, tokensIn, tokensOut, err := c.next.DoRequest(ctx, prompt, opts)
	tripped := c.cb.record(err, trial)

	if c.metrics != nil {
		if err == nil {
			c.metrics.RecordSuccess()
		} else {
			c.metrics.RecordFailure()
		}
		if tripped {
			c.metrics.RecordTrip()
		}
		c.metrics.RecordState(c.cb.GetState())
	}
	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
