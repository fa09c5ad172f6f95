package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/ahrav/go-reelscout/internal/llmjson"
	"github.com/ahrav/go-reelscout/internal/ports"
)

const playerResponseMarker = "ytInitialPlayerResponse = "

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			Tracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	// Kind is "asr" for automatic captions and empty for uploaded ones.
	Kind string `json:"kind"`
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript returns the raw caption text of a video, segments joined by
// single spaces. Videos without a usable track yield ports.ErrNoCaptions.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	page, err := c.fetch(ctx, "transcript", videoID,
		c.watchBase+"/watch?v="+url.QueryEscape(videoID), maxWatchPageBytes)
	if err != nil {
		return "", err
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return "", ports.NewVideoProviderError("transcript", videoID, 0, err)
	}
	track, ok := pickTrack(tracks)
	if !ok {
		return "", ports.NewVideoProviderError("transcript", videoID, 0,
			fmt.Errorf("%w: every track requires a proof-of-origin token", ports.ErrNoCaptions))
	}

	trackURL, err := c.resolve(track.BaseURL)
	if err != nil {
		return "", ports.NewVideoProviderError("transcript", videoID, 0, err)
	}
	body, err := c.fetch(ctx, "transcript", videoID, trackURL, maxCaptionBytes)
	if err != nil {
		return "", err
	}

	text, err := parseTimedText(body)
	if err != nil {
		return "", ports.NewVideoProviderError("transcript", videoID, 0, err)
	}
	return text, nil
}

// captionTracks extracts the caption track list from a watch page.
func captionTracks(page []byte) ([]captionTrack, error) {
	idx := bytes.Index(page, []byte(playerResponseMarker))
	if idx < 0 {
		return nil, fmt.Errorf("%w: player response not found", ports.ErrInvalidResponse)
	}

	text := string(page)
	start, end, ok := llmjson.BalancedSpan(text, '{', idx+len(playerResponseMarker))
	if !ok {
		return nil, fmt.Errorf("%w: unterminated player response", ports.ErrInvalidResponse)
	}

	var player playerResponse
	if err := json.Unmarshal([]byte(text[start:end]), &player); err != nil {
		return nil, fmt.Errorf("%w: decode player response: %w", ports.ErrInvalidResponse, err)
	}
	if player.Captions == nil || len(player.Captions.Renderer.Tracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ports.ErrNoCaptions, player.PlayabilityStatus.Reason)
		}
		return nil, ports.ErrNoCaptions
	}
	return player.Captions.Renderer.Tracks, nil
}

// pickTrack prefers uploaded English captions, then automatic English,
// then the first usable track. Tracks marked exp=xpe need a browser-issued
// token and are never chosen.
func pickTrack(tracks []captionTrack) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !strings.Contains(t.BaseURL, "&exp=xpe") {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}

	english := func(t captionTrack) bool { return strings.HasPrefix(t.LanguageCode, "en") }
	for _, t := range usable {
		if english(t) && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range usable {
		if english(t) {
			return t, true
		}
	}
	return usable[0], true
}

// resolve makes relative track URLs absolute against the watch host.
func (c *Client) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad caption url: %w", ports.ErrInvalidResponse, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.watchBase)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("%w: parse timed text: %w", ports.ErrInvalidResponse, err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		// Caption text is entity-encoded a second time inside the XML.
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: caption track is empty", ports.ErrNoCaptions)
	}
	return sb.String(), nil
}
