package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

const defaultMaxEntries = 1024

// Memory is an in-process LRU whose entries expire after a fixed TTL.
type Memory struct {
	lru *expirable.LRU[string, []domain.RankedResult]
}

var _ ports.ResultCache = (*Memory)(nil)

// NewMemory creates a cache holding at most maxEntries queries for ttl.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{lru: expirable.NewLRU[string, []domain.RankedResult](maxEntries, nil, ttl)}
}

// Get returns a copy of the cached results.
func (m *Memory) Get(_ context.Context, key string) ([]domain.RankedResult, bool, error) {
	results, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return domain.CloneResults(results), true, nil
}

// Set stores a copy of results. The LRU has a single TTL fixed at
// construction, so a per-call ttl is ignored.
func (m *Memory) Set(_ context.Context, key string, results []domain.RankedResult, _ time.Duration) error {
	m.lru.Add(key, domain.CloneResults(results))
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.lru.Len() }
