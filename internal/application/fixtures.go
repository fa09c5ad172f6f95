package application

import (
	"fmt"

	"github.com/ahrav/go-reelscout/internal/domain"
)

const defaultAvatar = "https://yt3.ggpht.com/default-avatar=s88-c-k-c0x00ffffff-no-rj"

type fixtureEntry struct {
	id, titleFormat, thumbnail, channel, avatar string
	views                                       uint64
	duration                                    int
	score                                       float64
	reason                                      string
}

var mockEntries = []fixtureEntry{
	{
		id: "mock1", titleFormat: "Ultimate 5 Day %s Itinerary | Must Visit Places",
		thumbnail: "https://images.unsplash.com/photo-1476514525535-07fb3b4ae5f1?w=800&q=80",
		channel:   "Apoorva Rao",
		avatar:    "https://yt3.ggpht.com/pi8WfAkOunCZLYNrXXtBGlhHWmi5khV1zkSojXrRf4kish2VRs45o8yV27buYCF91LPWowGV9FQ=s88-c-k-c0x00ffffff-no-rj",
		views:     705000, duration: 50, score: 0.95,
		reason: "Title matches. Transcript contains: travel, visit, city.",
	},
	{
		id: "mock2", titleFormat: "#dudhsagar water falls | %s travel guide",
		thumbnail: "https://images.unsplash.com/photo-1504674900247-0877df9cc836?w=800&q=80",
		channel:   "urs@Raju", avatar: defaultAvatar,
		views: 788000, duration: 45, score: 0.85,
		reason: "Title matches. Description matches.",
	},
	{
		id: "mock3", titleFormat: "Perfect 5 days %s Itinerary | Travel Vlog",
		thumbnail: "https://images.unsplash.com/photo-1501785888041-af3ef285b470?w=800&q=80",
		channel:   "Wandering Mi...", avatar: defaultAvatar,
		views: 1200000, duration: 60, score: 0.7,
		reason: "Title matches.",
	},
	{
		id: "mock4", titleFormat: "Hidden Gems in %s you MUST see!",
		thumbnail: "https://images.unsplash.com/photo-1527631746610-bca00a040d60?w=800&q=80",
		channel:   "Travel Tips", avatar: defaultAvatar,
		views: 523000, duration: 55, score: 0.6,
		reason: "Title matches.",
	},
	{
		id: "mock5", titleFormat: "Best Street Food in %s | Food Tour",
		thumbnail: "https://images.unsplash.com/photo-1555396273-367ea4eb4db5?w=800&q=80",
		channel:   "Foodie Travels", avatar: defaultAvatar,
		views: 892000, duration: 48, score: 0.55,
		reason: "Description matches.",
	},
	{
		id: "mock6", titleFormat: "%s Beach Life | Sunset Vibes",
		thumbnail: "https://images.unsplash.com/photo-1507525428034-b723cf961d3e?w=800&q=80",
		channel:   "Beach Lover", avatar: defaultAvatar,
		views: 445000, duration: 42, score: 0.5,
		reason: "Title matches.",
	},
	{
		id: "mock7", titleFormat: "Budget Travel %s | Under $50/day",
		thumbnail: "https://images.unsplash.com/photo-1469474968028-56623f02e42e?w=800&q=80",
		channel:   "Budget Explorer", avatar: defaultAvatar,
		views: 1500000, duration: 65, score: 0.45,
		reason: "Title matches. Transcript contains: travel, hotel.",
	},
	{
		id: "mock8", titleFormat: "Nightlife in %s | Club Hopping",
		thumbnail: "https://images.unsplash.com/photo-1514525253161-7a46d19cd819?w=800&q=80",
		channel:   "Night Owl", avatar: defaultAvatar,
		views: 678000, duration: 52, score: 0.4,
		reason: "Description matches.",
	},
}

// MockResults returns the fixed demonstration list served when provider
// credentials are missing, with query interpolated into every title.
func MockResults(query string) []domain.RankedResult {
	out := make([]domain.RankedResult, len(mockEntries))
	for i, e := range mockEntries {
		duration := e.duration
		out[i] = domain.RankedResult{
			ID:               e.id,
			Title:            fmt.Sprintf(e.titleFormat, query),
			Thumbnail:        e.thumbnail,
			ChannelTitle:     e.channel,
			ViewCount:        e.views,
			Duration:         &duration,
			ChannelAvatarURL: e.avatar,
			RelevanceScore:   e.score,
			RelevanceReason:  e.reason,
		}
	}
	return out
}
