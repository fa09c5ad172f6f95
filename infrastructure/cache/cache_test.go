package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

func sampleResults() []domain.RankedResult {
	d := 45
	return []domain.RankedResult{
		{ID: "v1", Title: "Kyoto in 60s", ViewCount: 1200, Duration: &d, RelevanceScore: 0.91},
		{ID: "v2", Title: "Nara deer", RelevanceScore: 0.5},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    any
		wantErr bool
	}{
		{name: "empty backend", opts: Options{}, want: Nop{}},
		{name: "none", opts: Options{Backend: BackendNone}, want: Nop{}},
		{name: "memory", opts: Options{Backend: BackendMemory}, want: &Memory{}},
		{name: "redis", opts: Options{Backend: BackendRedis, RedisURL: "redis://localhost:6379/0"}, want: &Redis{}},
		{name: "redis without url", opts: Options{Backend: BackendRedis}, wantErr: true},
		{name: "unknown", opts: Options{Backend: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.opts, zerolog.Nop())
			if tt.wantErr {
				var cfgErr *ports.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "kyoto japan", Key("  Kyoto \t JAPAN "))
	assert.Equal(t, Key("Lisbon"), Key("lisbon"))
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Nop{}.Set(ctx, "k", sampleResults(), time.Minute))

	got, ok, err := Nop{}.Get(ctx, "k")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip returns a copy", func(t *testing.T) {
		// Given a stored result list
		m := NewMemory(4, time.Minute)
		in := sampleResults()
		require.NoError(t, m.Set(ctx, "kyoto", in, 0))

		// When the caller mutates what it read
		got, ok, err := m.Get(ctx, "kyoto")
		require.NoError(t, err)
		require.True(t, ok)
		got[0].Title = "changed"
		*got[0].Duration = 999

		// Then the cached entry is unaffected
		again, _, _ := m.Get(ctx, "kyoto")
		assert.Equal(t, "Kyoto in 60s", again[0].Title)
		require.NotNil(t, again[0].Duration)
		assert.Equal(t, 45, *again[0].Duration)
	})

	t.Run("stored entry is detached from the writer", func(t *testing.T) {
		m := NewMemory(4, time.Minute)
		in := sampleResults()
		require.NoError(t, m.Set(ctx, "kyoto", in, 0))

		*in[0].Duration = 1

		got, _, _ := m.Get(ctx, "kyoto")
		assert.Equal(t, 45, *got[0].Duration)
	})

	t.Run("entries expire", func(t *testing.T) {
		m := NewMemory(4, 20*time.Millisecond)
		require.NoError(t, m.Set(ctx, "kyoto", sampleResults(), 0))

		assert.Eventually(t, func() bool {
			_, ok, _ := m.Get(ctx, "kyoto")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("least recently used is evicted", func(t *testing.T) {
		m := NewMemory(2, time.Minute)
		_ = m.Set(ctx, "a", sampleResults(), 0)
		_ = m.Set(ctx, "b", sampleResults(), 0)
		_, _, _ = m.Get(ctx, "a")
		_ = m.Set(ctx, "c", sampleResults(), 0)

		_, okA, _ := m.Get(ctx, "a")
		_, okB, _ := m.Get(ctx, "b")
		assert.True(t, okA)
		assert.False(t, okB)
		assert.Equal(t, 2, m.Len())
	})
}

// fakeRedis is an in-memory redisStore.
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Close() error { return nil }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return redis.NewStatusResult("", f.failSet)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip under prefix", func(t *testing.T) {
		// Given a redis cache with a one hour default
		store := newFakeRedis()
		r := newRedisWithStore(store, time.Hour, zerolog.Nop())

		// When results are stored without an explicit ttl
		require.NoError(t, r.Set(ctx, "kyoto", sampleResults(), 0))
		got, ok, err := r.Get(ctx, "kyoto")

		// Then they round-trip under the namespaced key with the default ttl
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, sampleResults(), got)
		assert.Contains(t, store.data, KeyPrefix+"kyoto")
		assert.Equal(t, time.Hour, store.ttls[KeyPrefix+"kyoto"])
	})

	t.Run("missing key is a miss", func(t *testing.T) {
		r := newRedisWithStore(newFakeRedis(), 0, zerolog.Nop())

		got, ok, err := r.Get(ctx, "nowhere")

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("corrupt value", func(t *testing.T) {
		store := newFakeRedis()
		store.data[KeyPrefix+"bad"] = "{not json"
		r := newRedisWithStore(store, 0, zerolog.Nop())

		_, ok, err := r.Get(ctx, "bad")

		assert.False(t, ok)
		assert.ErrorIs(t, err, ports.ErrCacheCorrupted)
	})

	t.Run("backend failures surface as cache errors", func(t *testing.T) {
		store := newFakeRedis()
		store.failGet = errors.New("connection refused")
		store.failSet = errors.New("connection refused")
		r := newRedisWithStore(store, 0, zerolog.Nop())

		_, _, getErr := r.Get(ctx, "k")
		setErr := r.Set(ctx, "k", sampleResults(), time.Minute)

		var cacheErr *ports.CacheError
		require.ErrorAs(t, getErr, &cacheErr)
		assert.Equal(t, "get", cacheErr.Operation)
		require.ErrorAs(t, setErr, &cacheErr)
		assert.Equal(t, "set", cacheErr.Operation)
	})
}
