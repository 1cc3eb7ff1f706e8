package model

import (
	"fmt"
	"strings"
	"time"
)

// Action is a search interaction kind.
type Action string

const (
	ActionView  Action = "view"
	ActionClick Action = "click"
	ActionBook  Action = "book"
)

var rewards = map[Action]float64{
	ActionView:  0.1,
	ActionClick: 0.3,
	ActionBook:  1.0,
}

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rewards[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Reward is the bandit reward attributed to the action.
func (a Action) Reward() float64 { return rewards[a] }

// InteractionContext is the free-form search context stored alongside an
// interaction and forwarded to the ranking service.
type InteractionContext struct {
	Query     string         `json:"query,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
	TimeOfDay *int           `json:"time_of_day,omitempty"`
	Tags      StringList     `json:"tags,omitempty"`
}

// SearchInteraction is one row of the append-only `search_interactions`
// log.
type SearchInteraction struct {
	ID        uint64             `json:"id"`
	UserID    uint64             `json:"user_id"`
	ListingID uint64             `json:"listing_id"`
	Action    Action             `json:"action"`
	Context   InteractionContext `json:"context"`
	Reward    float64            `json:"reward"`
	CreatedAt time.Time          `json:"created_at"`
}

// InteractionStats aggregates the log per listing.
type InteractionStats struct {
	ListingID   uint64  `json:"listing_id"`
	Views       int64   `json:"views"`
	Clicks      int64   `json:"clicks"`
	Bookings    int64   `json:"bookings"`
	TotalReward float64 `json:"total_reward"`
}
