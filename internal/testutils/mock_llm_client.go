// Package testutils provides deterministic test doubles for the ports used
// by the discovery pipeline.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-reelscout/internal/ports"
)

// MockResponse defines a pre-configured reply for prompts containing Pattern.
type MockResponse struct {
	// Pattern is matched case-insensitively as a substring of the prompt.
	// An empty pattern matches every prompt.
	Pattern string

	// Response is the text returned for matching prompts.
	Response string

	// Err, when set, is returned instead of Response.
	Err error

	// Delay is waited before replying. Cancelling the context ends the
	// wait early with the context error.
	Delay time.Duration
}

// Call records one Complete invocation.
type Call struct {
	Prompt  string
	Options map[string]any
}

// MockLLMClient implements ports.LLMClient with scripted replies. Patterns
// are tried in the order they were added, so add specific patterns before
// catch-all ones. It is safe for concurrent use.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	calls     []Call
}

var _ ports.LLMClient = (*MockLLMClient)(nil)

// NewMockLLMClient creates a client that answers with the given responses.
func NewMockLLMClient(model string, responses ...MockResponse) *MockLLMClient {
	return &MockLLMClient{model: model, responses: responses}
}

// AddResponse appends a reply pattern.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
}

// Complete returns the first matching scripted reply.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	opts := make(map[string]any, len(options))
	for k, v := range options {
		opts[k] = v
	}
	m.calls = append(m.calls, Call{Prompt: prompt, Options: opts})
	r, ok := m.match(prompt)
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("mock llm: no response scripted for prompt %.40q", prompt)
	}
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Response, nil
}

func (m *MockLLMClient) match(prompt string) (MockResponse, bool) {
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if r.Pattern == "" || strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r, true
		}
	}
	return MockResponse{}, false
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel returns the configured model name.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel changes the reported model name.
func (m *MockLLMClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Calls returns a copy of every recorded invocation.
func (m *MockLLMClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// LastPrompt returns the most recent prompt, or "" when none was sent.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].Prompt
}
