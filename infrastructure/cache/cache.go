// Package cache provides ports.ResultCache backends: a no-op default, an
// in-process expiring LRU and a shared Redis store.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultTTL applies when neither configuration nor the caller sets one.
const DefaultTTL = time.Hour

// Options selects and tunes a backend.
type Options struct {
	Backend string
	TTL     time.Duration

	// MaxEntries bounds the memory backend.
	MaxEntries int

	// RedisURL is a redis:// or rediss:// URL for the redis backend.
	RedisURL string
}

// New builds the backend named by opts.Backend. An empty name selects the
// no-op cache.
func New(opts Options, logger zerolog.Logger) (ports.ResultCache, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch opts.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendMemory:
		return NewMemory(opts.MaxEntries, ttl), nil
	case BackendRedis:
		return NewRedis(opts.RedisURL, ttl, logger)
	default:
		return nil, ports.NewConfigError("cache.backend", fmt.Errorf("unknown cache backend %q", opts.Backend))
	}
}

// Key normalizes a query into a cache key: lowercased, trimmed, inner
// whitespace collapsed.
func Key(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Nop never stores anything.
type Nop struct{}

var _ ports.ResultCache = Nop{}

// Get always misses.
func (Nop) Get(_ context.Context, _ string) ([]domain.RankedResult, bool, error) {
	return nil, false, nil
}

// Set discards results.
func (Nop) Set(_ context.Context, _ string, _ []domain.RankedResult, _ time.Duration) error {
	return nil
}
