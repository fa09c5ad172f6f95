package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/internal/ports"
)

func newOpenAITestServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_DoRequest(t *testing.T) {
	// Given a compatible endpoint returning one choice
	var req map[string]any
	srv := newOpenAITestServer(t, http.StatusOK, `{
		"choices": [{"message": {"role": "assistant", "content": "{\"queries\":[\"a\"]}"}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 7}
	}`, &req)

	core, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", Model: "gpt-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	// When a JSON-mode request with a system instruction is made
	resp, in, out, err := core.DoRequest(context.Background(), "expand", map[string]any{
		"json":        true,
		"system":      "reply in json",
		"temperature": 0.3,
	})

	// Then the reply and usage come back and the request carries the options
	require.NoError(t, err)
	assert.Equal(t, `{"queries":["a"]}`, resp)
	assert.Equal(t, 12, in)
	assert.Equal(t, 7, out)
	assert.Equal(t, "gpt-test", req["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, ports.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ports.ErrAuthenticationFailed},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, ports.ErrServiceUnavailable},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrNoResponseChoice},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":""}}]}`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOpenAITestServer(t, tt.status, tt.body, nil)
			core, err := newOpenAIProvider(ClientConfig{APIKey: "test-key", Model: "m", BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)

			_, _, _, err = core.DoRequest(context.Background(), "p", nil)

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenAIProvider_DefaultModel(t *testing.T) {
	core, err := newOpenAIProvider(ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, OpenAIDefaultModel, core.GetModel())

	core.SetModel("gpt-other")
	assert.Equal(t, "gpt-other", core.GetModel())
}
