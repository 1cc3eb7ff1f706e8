// Package ranking orders listings by performance score for search and
// turns low scores into deduplicated host notifications.
package ranking

import (
	"sort"
	"strings"

	"github.com/iliyamo/stay-reservation/internal/model"
)

// Badge is the label shown next to a listing in search results.
type Badge struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

// BadgeFor returns the badge for a score, or nil when none applies.
func BadgeFor(score int) *Badge {
	switch {
	case score >= 80:
		return &Badge{Text: "Top Performer", Tone: "success"}
	case score >= 60:
		return &Badge{Text: "Good", Tone: "info"}
	case score <= 30:
		return &Badge{Text: "Needs Attention", Tone: "warning"}
	default:
		return nil
	}
}

// RankedListing is a listing decorated for search output.
type RankedListing struct {
	model.Listing
	Score int    `json:"score"`
	Badge *Badge `json:"performance_badge,omitempty"`
}

// Rank sorts listings by effective score, highest first. Ties keep the
// input order.
func Rank(listings []model.Listing) []RankedListing {
	out := make([]RankedListing, len(listings))
	for i, l := range listings {
		score := l.EffectiveScore()
		out[i] = RankedListing{Listing: l, Score: score, Badge: BadgeFor(score)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Filter keeps listings whose title, location or country contains query,
// case-insensitively. An empty query keeps everything.
func Filter(listings []model.Listing, query string) []model.Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return listings
	}
	var out []model.Listing
	for _, l := range listings {
		if strings.Contains(strings.ToLower(l.Title), q) ||
			strings.Contains(strings.ToLower(l.Location), q) ||
			strings.Contains(strings.ToLower(l.Country), q) {
			out = append(out, l)
		}
	}
	return out
}

// Reorder arranges ids following preferred. Ids missing from preferred
// keep their relative order at the end; ids in preferred that are not in
// ids are dropped, as are duplicates.
func Reorder(ids, preferred []uint64) []uint64 {
	known := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	used := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range preferred {
		if known[id] && !used[id] {
			used[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if !used[id] {
			used[id] = true
			out = append(out, id)
		}
	}
	return out
}
