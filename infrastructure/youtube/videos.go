package youtube

import (
	"context"
	"strings"

	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ahrav/go-reelscout/internal/ports"
)

// VideoStats fetches statistics, content details and snippets for ids in
// batches of 50. Any failed batch fails the whole call.
func (c *Client) VideoStats(ctx context.Context, ids []string) (map[string]ports.VideoStats, error) {
	out := make(map[string]ports.VideoStats, len(ids))

	for _, batch := range chunk(ids, maxIDsPerRequest) {
		resp, err := c.videoBatch(ctx, batch)
		if err != nil {
			return nil, classify("videos", strings.Join(batch, ","), err)
		}

		for _, item := range resp.Items {
			stats := ports.VideoStats{ID: item.Id}
			if item.Statistics != nil {
				stats.ViewCount = item.Statistics.ViewCount
			}
			if item.ContentDetails != nil {
				stats.Duration = item.ContentDetails.Duration
			}
			if item.Snippet != nil {
				stats.ChannelID = item.Snippet.ChannelId
				stats.PublishedAt = parsePublished(item.Snippet.PublishedAt)
			}
			out[item.Id] = stats
		}
	}
	return out, nil
}

func (c *Client) videoBatch(ctx context.Context, batch []string) (*ytapi.VideoListResponse, error) {
	callCtx, cancel, err := c.apiContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.service.Videos.List([]string{"statistics", "contentDetails", "snippet"}).
		Id(batch...).
		MaxResults(int64(len(batch))).
		Context(callCtx).
		Do()
}
