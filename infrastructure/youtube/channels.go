package youtube

import (
	"context"
	"strings"

	ytapi "google.golang.org/api/youtube/v3"
)

// ChannelAvatars returns channel thumbnails keyed by channel id. Channels
// are looked up in batches of 50; a failed batch is logged and skipped.
func (c *Client) ChannelAvatars(ctx context.Context, channelIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(channelIDs))

	for _, batch := range chunk(channelIDs, maxIDsPerRequest) {
		if err := ctx.Err(); err != nil {
			return out, classify("channels", strings.Join(batch, ","), err)
		}

		resp, err := c.channelBatch(ctx, batch)
		if err != nil {
			c.logger.Warn().
				Err(classify("channels", strings.Join(batch, ","), err)).
				Int("channels", len(batch)).
				Msg("channel batch failed, avatars skipped")
			continue
		}

		for _, item := range resp.Items {
			if item.Snippet == nil {
				continue
			}
			if url := bestThumbnail(item.Snippet.Thumbnails, false); url != "" {
				out[item.Id] = url
			}
		}
	}
	return out, nil
}

func (c *Client) channelBatch(ctx context.Context, batch []string) (*ytapi.ChannelListResponse, error) {
	callCtx, cancel, err := c.apiContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return c.service.Channels.List([]string{"snippet"}).
		Id(batch...).
		MaxResults(int64(len(batch))).
		Context(callCtx).
		Do()
}
