// Package llm provides the text-generation client used by the query expander
// and the relevance judge.
//
// Providers (OpenAI and compatible endpoints, Anthropic, Google Gemini) sit
// behind the CoreLLM interface. Cross-cutting behavior is added by wrapping a
// provider in Middleware: retries with exponential backoff, per-request
// timeouts, rate limiting, circuit breaking, metrics, tracing and logging.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("LLM_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	text, err := client.Complete(ctx, prompt, map[string]any{"temperature": 0.2})
//
// With the standard resilience stack:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    APIKey:     key,
//	    Model:      "gemini-2.0-flash",
//	    Middleware: llm.DefaultMiddleware(llm.DefaultResilience(), deps),
//	})
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-reelscout/internal/ports"
)

// CoreLLM is the minimal contract a provider implements. Middleware wraps
// CoreLLM values, so every layer sees the same shape.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the response text with input and
	// output token counts.
	DoRequest(
		ctx context.Context,
		prompt string,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds everything needed to build a client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the provider model name.
	Model string

	// BaseURL overrides the provider endpoint. For the openai provider this
	// selects any OpenAI-compatible API, such as Gemini's compatibility layer.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero keeps the SDK default.
	// Per-operation deadlines are set by callers through the context.
	Timeout time.Duration

	// TokenEstimator overrides the character-based default.
	TokenEstimator TokenEstimator

	// Middleware is applied so that the first element is the outermost layer.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add behavior.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a wrapped provider.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient builds a client for providerType ("openai", "anthropic" or
// "google") and applies the configured middleware.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := lookupProvider(providerType)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", providerType, Providers())
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	return NewClientFromCore(core, config.TokenEstimator, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM. It is the seam tests use to
// drive the middleware stack with a fake provider.
func NewClientFromCore(core CoreLLM, estimator TokenEstimator, middleware ...Middleware) *Client {
	// Reverse order so middleware[0] ends up outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			core = middleware[i](core)
		}
	}
	if estimator == nil {
		estimator = SimpleTokenEstimator{}
	}
	return &Client{core: core, estimator: estimator}
}

// Complete sends a prompt and returns the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and also reports token usage.
func (c *Client) CompleteWithUsage(
	ctx context.Context,
	prompt string,
	options map[string]any,
) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens returns an approximate token count for text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name reported by the provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator assumes roughly four characters per token.
type SimpleTokenEstimator struct{}

// EstimateTokens implements TokenEstimator.
func (SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory builds a provider from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	providersMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewClient.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providerFactories[providerType] = factory
}

// Providers lists registered provider names in sorted order.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupProvider(name string) (ProviderFactory, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	f, ok := providerFactories[name]
	return f, ok
}
