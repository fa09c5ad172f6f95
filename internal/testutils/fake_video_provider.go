package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// FakeVideoProvider is an in-memory video platform implementing every video
// port. Zero-value maps mean "nothing known". It is safe for concurrent use.
type FakeVideoProvider struct {
	mu sync.Mutex

	// SearchResults maps the exact query text to its hits.
	SearchResults map[string][]domain.SearchCandidate
	// SearchErrs maps the exact query text to a failure.
	SearchErrs map[string]error
	// SearchDelay is waited before every search reply.
	SearchDelay time.Duration
	// SearchDelays maps the exact query text to an extra wait before its
	// reply.
	SearchDelays map[string]time.Duration

	Stats    map[string]ports.VideoStats
	StatsErr error
	// StatsDelay is waited before every statistics reply.
	StatsDelay time.Duration

	// Avatars maps channel ID to avatar URL.
	Avatars    map[string]string
	AvatarsErr error
	// AvatarsDelay is waited before every avatar reply.
	AvatarsDelay time.Duration

	Transcripts    map[string]string
	TranscriptErrs map[string]error
	// TranscriptDelay is waited before every transcript reply.
	TranscriptDelay time.Duration

	queries     []ports.SearchQuery
	statsCalls  [][]string
	avatarCalls [][]string
	inFlight    int
	maxInFlight int
}

var (
	_ ports.VideoSearcher     = (*FakeVideoProvider)(nil)
	_ ports.StatsFetcher      = (*FakeVideoProvider)(nil)
	_ ports.ChannelFetcher    = (*FakeVideoProvider)(nil)
	_ ports.TranscriptFetcher = (*FakeVideoProvider)(nil)
)

// NewFakeVideoProvider returns a provider with empty tables.
func NewFakeVideoProvider() *FakeVideoProvider {
	return &FakeVideoProvider{
		SearchResults:  map[string][]domain.SearchCandidate{},
		SearchErrs:     map[string]error{},
		SearchDelays:   map[string]time.Duration{},
		Stats:          map[string]ports.VideoStats{},
		Avatars:        map[string]string{},
		Transcripts:    map[string]string{},
		TranscriptErrs: map[string]error{},
	}
}

// Search implements ports.VideoSearcher.
func (f *FakeVideoProvider) Search(ctx context.Context, q ports.SearchQuery) ([]domain.SearchCandidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	delay := f.SearchDelay + f.SearchDelays[q.Text]
	f.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SearchErrs[q.Text]; err != nil {
		return nil, err
	}
	hits := f.SearchResults[q.Text]
	if q.MaxResults > 0 && int64(len(hits)) > q.MaxResults {
		hits = hits[:q.MaxResults]
	}
	return append([]domain.SearchCandidate(nil), hits...), nil
}

// VideoStats implements ports.StatsFetcher.
func (f *FakeVideoProvider) VideoStats(ctx context.Context, ids []string) (map[string]ports.VideoStats, error) {
	f.mu.Lock()
	delay := f.StatsDelay
	f.mu.Unlock()
	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls = append(f.statsCalls, append([]string(nil), ids...))
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	out := make(map[string]ports.VideoStats, len(ids))
	for _, id := range ids {
		if s, ok := f.Stats[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

// ChannelAvatars implements ports.ChannelFetcher.
func (f *FakeVideoProvider) ChannelAvatars(ctx context.Context, channelIDs []string) (map[string]string, error) {
	f.mu.Lock()
	delay := f.AvatarsDelay
	f.mu.Unlock()
	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avatarCalls = append(f.avatarCalls, append([]string(nil), channelIDs...))
	if f.AvatarsErr != nil {
		return nil, f.AvatarsErr
	}
	out := make(map[string]string, len(channelIDs))
	for _, id := range channelIDs {
		if u, ok := f.Avatars[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// Transcript implements ports.TranscriptFetcher.
func (f *FakeVideoProvider) Transcript(ctx context.Context, videoID string) (string, error) {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	delay := f.TranscriptDelay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err := wait(ctx, delay); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.TranscriptErrs[videoID]; err != nil {
		return "", err
	}
	text, ok := f.Transcripts[videoID]
	if !ok {
		return "", ports.ErrNoCaptions
	}
	return text, nil
}

// Queries returns every search request in the order received.
func (f *FakeVideoProvider) Queries() []ports.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.SearchQuery(nil), f.queries...)
}

// QueryTexts returns the sorted texts of every search request.
func (f *FakeVideoProvider) QueryTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	for i, q := range f.queries {
		out[i] = q.Text
	}
	sort.Strings(out)
	return out
}

// StatsCalls returns the id lists passed to VideoStats.
func (f *FakeVideoProvider) StatsCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.statsCalls...)
}

// AvatarCalls returns the channel id lists passed to ChannelAvatars.
func (f *FakeVideoProvider) AvatarCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.avatarCalls...)
}

// MaxConcurrentTranscripts reports the peak number of overlapping
// Transcript calls.
func (f *FakeVideoProvider) MaxConcurrentTranscripts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
