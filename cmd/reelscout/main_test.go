package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/infrastructure/middleware"
	"github.com/ahrav/go-reelscout/internal/application"
	"github.com/ahrav/go-reelscout/internal/domain"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("YOUTUBE_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
}

func TestSearchCommand_PrintsJSON(t *testing.T) {
	// Given no provider credentials
	clearProviderEnv(t)
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"search", "--log-level", "error", "Kyoto"})

	// When the search command runs
	require.NoError(t, root.ExecuteContext(context.Background()))

	// Then the fixture is printed as indented JSON
	var results []domain.RankedResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 8)
	assert.Equal(t, "Hidden Gems in Kyoto you MUST see!", results[3].Title)
	assert.Contains(t, out.String(), "\n  {\n    \"id\": \"mock1\"")
}

func TestRootCommand_RejectsBadConfig(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "--config", "/nonexistent/reelscout.yaml", "Kyoto"})

	assert.Error(t, root.ExecuteContext(context.Background()))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "debug", level: "debug"},
		{name: "warn", level: "warn"},
		{name: "unknown", level: "chatty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, false, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Warn().Msg("visible")
			logger.Trace().Msg("hidden")
			assert.Contains(t, buf.String(), "visible")
			assert.NotContains(t, buf.String(), "hidden")
		})
	}
}

func newTestServer(t *testing.T) (*searchServer, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	deps := application.Deps{Logger: zerolog.Nop(), Metrics: middleware.NewPrometheusMetrics(reg)}
	srv, err := newSearchServer(context.Background(), application.DefaultConfig(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, reg
}

func TestSearchServer_Routes(t *testing.T) {
	srv, reg := newTestServer(t)
	ts := httptest.NewServer(srv.Handler(reg))
	defer ts.Close()

	t.Run("search", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/search?q=Porto")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		var results []domain.RankedResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
		assert.Len(t, results, 8)
	})

	t.Run("blank query is an empty array", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/search?q=%20")
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		assert.JSONEq(t, `[]`, buf.String())
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, buf.String(), `reelscout_searches_total{source="mock"} 1`)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/search?q=Porto", "text/plain", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestSearchServer_Reload(t *testing.T) {
	// Given a server running on mock results
	srv, _ := newTestServer(t)
	before := srv.current.Load()

	// When an invalid config arrives
	bad := application.DefaultConfig()
	bad.Pipeline.ResultLimit = 0
	srv.Reload(context.Background(), bad)

	// Then the previous orchestrator keeps serving
	assert.Same(t, before, srv.current.Load())

	// When a valid config arrives
	good := application.DefaultConfig()
	good.Cache.Backend = "memory"
	srv.Reload(context.Background(), good)

	// Then it is swapped in
	assert.NotSame(t, before, srv.current.Load())
}
