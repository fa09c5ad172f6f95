package llm

import (
	"fmt"
	"net/url"
	"sync"
)

// Parameter bounds shared by providers.
const (
	// DefaultMaxTokens applies when a request does not set max_tokens. The
	// judge reply for a full candidate batch fits comfortably.
	DefaultMaxTokens = 2048

	MinTemperature = 0.0
	// MaxTemperature accommodates providers that accept up to 2.0.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
)

// RequestOptions is the normalized form of the options map passed to
// Complete.
type RequestOptions struct {
	MaxTokens int
	Model     string

	// Temperature and TopP are nil when the provider default should apply.
	Temperature *float64
	TopP        *float64

	// System is a system instruction. Providers without a system role
	// prepend it to the prompt.
	System string

	// JSONMode asks providers that support it for a JSON-only reply.
	JSONMode bool

	// Extra holds options this package does not interpret.
	Extra map[string]any
}

// ParseRequestOptions normalizes an options map, falling back to defaults
// for missing or out-of-range values.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp, ok := extractFloat(opts, "temperature"); ok && IsValidTemperature(temp) {
		options.Temperature = &temp
	}
	if topP, ok := extractFloat(opts, "top_p"); ok && IsValidTopP(topP) {
		options.TopP = &topP
	}
	if jsonMode, ok := opts["json"].(bool); ok {
		options.JSONMode = jsonMode
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p", "json":
		default:
			options.Extra[k] = v
		}
	}
	return options
}

// ExtractOptionalInt returns opts[key] when it is an int accepted by
// validator, otherwise defaultVal.
func ExtractOptionalInt(opts map[string]any, key string, defaultVal int, validator func(int) bool) int {
	v, ok := opts[key].(int)
	if !ok || (validator != nil && !validator(v)) {
		return defaultVal
	}
	return v
}

// ExtractOptionalString returns opts[key] when it is a string accepted by
// validator, otherwise defaultVal.
func ExtractOptionalString(opts map[string]any, key string, defaultVal string, validator func(string) bool) string {
	v, ok := opts[key].(string)
	if !ok || (validator != nil && !validator(v)) {
		return defaultVal
	}
	return v
}

// extractFloat accepts float64, float32 and int values.
func extractFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// IsPositiveInt reports whether val > 0.
func IsPositiveInt(val int) bool { return val > 0 }

// IsNonEmptyString reports whether val is not empty.
func IsNonEmptyString(val string) bool { return val != "" }

// IsValidTemperature reports whether val is within [0, 2].
func IsValidTemperature(val float64) bool { return val >= MinTemperature && val <= MaxTemperature }

// IsValidTopP reports whether val is within [0, 1].
func IsValidTopP(val float64) bool { return val >= MinTopP && val <= MaxTopP }

// ValidateBaseURL checks that baseURL is an absolute http(s) URL. An empty
// string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// modelHolder guards a provider's model name.
type modelHolder struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model.
func (m *modelHolder) GetModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// SetModel replaces the configured model.
func (m *modelHolder) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}
