// Package youtube adapts the YouTube Data API v3 and the public watch page to
// the video ports used by the discovery pipeline.
//
// Search, statistics and channel lookups go through the generated
// google.golang.org/api client. Captions are not exposed by the Data API for
// videos the caller does not own, so transcripts are read from the caption
// tracks advertised in the watch page's player response.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ahrav/go-reelscout/internal/ports"
)

const (
	// DefaultWatchBaseURL hosts watch pages and timed-text captions.
	DefaultWatchBaseURL = "https://www.youtube.com"

	// DefaultRequestTimeout bounds each Data API call.
	DefaultRequestTimeout = 10 * time.Second

	// maxIDsPerRequest is the Data API ceiling for id-list lookups.
	maxIDsPerRequest = 50

	// Watch pages run to a few megabytes; captions are far smaller.
	maxWatchPageBytes = 6 << 20
	maxCaptionBytes   = 512 << 10

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Config configures the adapters.
type Config struct {
	APIKey string

	// Endpoint overrides the Data API base URL.
	Endpoint string

	// WatchBaseURL overrides DefaultWatchBaseURL.
	WatchBaseURL string

	// HTTPClient is used for watch page and caption requests. The Data API
	// client keeps its own transport so the API key is attached.
	HTTPClient *http.Client

	// RequestTimeout bounds each Data API call. The generated service's
	// HTTP client has no deadline of its own. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// RequestsPerSecond and Burst pace every outbound call; zero disables
	// pacing.
	RequestsPerSecond float64
	Burst             int

	UserAgent string
}

// Client implements the search, statistics, channel and transcript ports.
type Client struct {
	service   *ytapi.Service
	timeout   time.Duration
	http      *http.Client
	watchBase string
	userAgent string
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

var (
	_ ports.VideoSearcher     = (*Client)(nil)
	_ ports.StatsFetcher      = (*Client)(nil)
	_ ports.ChannelFetcher    = (*Client)(nil)
	_ ports.TranscriptFetcher = (*Client)(nil)
)

// NewClient builds a Client. It fails when the API key is missing.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube API key: %w", ports.ErrConfigNotFound)
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	watchBase := cfg.WatchBaseURL
	if watchBase == "" {
		watchBase = DefaultWatchBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}

	return &Client{
		service:   service,
		timeout:   timeout,
		http:      httpClient,
		watchBase: watchBase,
		userAgent: userAgent,
		limiter:   limiter,
		logger:    logger.With().Str("component", "youtube").Logger(),
	}, nil
}

// apiContext paces one Data API call and bounds it with the request
// timeout. The caller must call cancel.
func (c *Client) apiContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	return callCtx, cancel, nil
}

// fetch performs a paced GET and returns at most limit bytes of the body.
func (c *Client) fetch(ctx context.Context, op, subject, url string, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(op, subject, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.NewVideoProviderError(op, subject, 0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ports.NewVideoProviderError(op, subject, resp.StatusCode, statusError(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, ports.NewVideoProviderError(op, subject, resp.StatusCode, err)
	}
	return body, nil
}

// classify wraps err in a VideoProviderError whose chain includes the
// matching port sentinel.
func classify(op, subject string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if sentinel := googleSentinel(gErr); sentinel != nil {
			err = fmt.Errorf("%w: %w", sentinel, err)
		}
		return ports.NewVideoProviderError(op, subject, gErr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ports.ErrTimeout, err)
	}
	return ports.NewVideoProviderError(op, subject, 0, err)
}

func googleSentinel(gErr *googleapi.Error) error {
	for _, item := range gErr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return ports.ErrQuotaExceeded
		case "rateLimitExceeded", "userRateLimitExceeded":
			return ports.ErrRateLimited
		}
	}
	return statusError(gErr.Code)
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ports.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ports.ErrAuthenticationFailed
	case code >= 500:
		return ports.ErrServiceUnavailable
	case code == http.StatusNotFound:
		return ports.ErrInvalidResponse
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

// parsePublished parses an RFC 3339 timestamp; unparsable input is the
// zero time, which scoring treats as unknown.
func parsePublished(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
