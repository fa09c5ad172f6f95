package youtube

import (
	"context"
	"html"

	ytapi "google.golang.org/api/youtube/v3"

	"github.com/ahrav/go-reelscout/internal/domain"
	"github.com/ahrav/go-reelscout/internal/ports"
)

// Search runs one search.list call restricted to videos.
func (c *Client) Search(ctx context.Context, q ports.SearchQuery) ([]domain.SearchCandidate, error) {
	callCtx, cancel, err := c.apiContext(ctx)
	if err != nil {
		return nil, classify("search", q.Text, err)
	}
	defer cancel()

	call := c.service.Search.List([]string{"snippet"}).
		Q(q.Text).
		Type("video")
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	if q.ShortOnly {
		call = call.VideoDuration("short")
	}

	resp, err := call.Context(callCtx).Do()
	if err != nil {
		return nil, classify("search", q.Text, err)
	}

	out := make([]domain.SearchCandidate, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		s := item.Snippet
		out = append(out, domain.SearchCandidate{
			ID:           item.Id.VideoId,
			Title:        html.UnescapeString(s.Title),
			Description:  html.UnescapeString(s.Description),
			ThumbnailURL: bestThumbnail(s.Thumbnails, true),
			ChannelID:    s.ChannelId,
			ChannelTitle: html.UnescapeString(s.ChannelTitle),
			PublishedAt:  parsePublished(s.PublishedAt),
		})
	}

	c.logger.Debug().
		Str("query", q.Text).
		Int("results", len(out)).
		Msg("search completed")
	return out, nil
}

// bestThumbnail prefers high, then medium, then (when allowed) default.
func bestThumbnail(t *ytapi.ThumbnailDetails, allowDefault bool) string {
	if t == nil {
		return ""
	}
	switch {
	case t.High != nil && t.High.Url != "":
		return t.High.Url
	case t.Medium != nil && t.Medium.Url != "":
		return t.Medium.Url
	case allowDefault && t.Default != nil:
		return t.Default.Url
	}
	return ""
}
