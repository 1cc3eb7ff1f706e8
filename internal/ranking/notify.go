package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/performance"
)

// Sweep defaults.
const (
	DefaultThreshold   = 40
	DefaultWindowDays  = 30
	HostAlertThreshold = 50
)

// NotificationType tags host performance alerts.
const NotificationType = "listing_performance"

// Notification is the payload handed to delivery.
type Notification struct {
	ID              string                  `json:"id"`
	Type            string                  `json:"type"`
	HostID          uint64                  `json:"host_id"`
	ListingID       uint64                  `json:"listing_id"`
	ListingTitle    string                  `json:"listing_title"`
	Score           int                     `json:"score"`
	Status          model.PerformanceStatus `json:"status"`
	Priority        string                  `json:"priority"`
	Message         string                  `json:"message"`
	Recommendations []model.Recommendation  `json:"recommendations"`
	CreatedAt       time.Time               `json:"created_at"`
}

// Message renders the headline shown to the host.
func Message(title string, score int) string {
	return fmt.Sprintf("Your listing %q has a performance score of %d/100. Review the recommendations to improve its ranking.", title, score)
}

// PriorityFor is high for critical scores and medium otherwise.
func PriorityFor(score int) string {
	if score < 20 {
		return "high"
	}
	return "medium"
}

// Sink delivers notifications. Delivery itself is out of process.
type Sink interface {
	PublishHostNotification(ctx context.Context, n Notification) error
}

// PerformanceSource finds listings under a score threshold.
type PerformanceSource interface {
	LowPerformers(ctx context.Context, threshold, windowDays int) ([]performance.LowPerformer, error)
	Below(ctx context.Context, listings []model.Listing, threshold, windowDays int) []performance.LowPerformer
}

// Sweeper produces at most one low-performance notification per listing
// per day.
type Sweeper struct {
	perf       PerformanceSource
	dedup      Deduper
	sink       Sink
	threshold  int
	windowDays int
	now        func() time.Time
	logger     *logrus.Logger

	mu sync.Mutex
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(score int) SweeperOption { return func(s *Sweeper) { s.threshold = score } }

// WithWindowDays overrides the scoring window.
func WithWindowDays(days int) SweeperOption { return func(s *Sweeper) { s.windowDays = days } }

// WithSweepClock overrides the time source used for dedup keys.
func WithSweepClock(now func() time.Time) SweeperOption { return func(s *Sweeper) { s.now = now } }

// NewSweeper wires a Sweeper. A nil dedup falls back to a MemoryDeduper;
// a nil sink only logs.
func NewSweeper(perf PerformanceSource, dedup Deduper, sink Sink, logger *logrus.Logger, opts ...SweeperOption) *Sweeper {
	if perf == nil {
		panic("nil performance source passed to ranking.NewSweeper")
	}
	if dedup == nil {
		dedup = NewMemoryDeduper()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Sweeper{
		perf:       perf,
		dedup:      dedup,
		sink:       sink,
		threshold:  DefaultThreshold,
		windowDays: DefaultWindowDays,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DueNotifications returns the notifications not yet emitted today and
// marks them as emitted. Calling it twice on the same day yields nothing
// the second time.
func (s *Sweeper) DueNotifications(ctx context.Context) ([]Notification, error) {
	low, err := s.perf.LowPerformers(ctx, s.threshold, s.windowDays)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var due []Notification
	for _, lp := range low {
		key := NotificationKey(lp.Listing.ID, now)
		first, err := s.dedup.MarkOnce(ctx, key)
		if err != nil {
			s.logger.WithError(err).WithField("listing_id", lp.Listing.ID).Warn("notification dedup failed")
			continue
		}
		if !first {
			continue
		}
		due = append(due, newNotification(lp, now))
	}
	return due, nil
}

// Sweep emits today's due notifications to the sink. A failed delivery is
// logged and does not stop the sweep. It returns how many were delivered.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, err := s.DueNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("find low performers: %w", err)
	}
	sent := 0
	for _, n := range due {
		entry := s.logger.WithFields(logrus.Fields{
			"host_id":    n.HostID,
			"listing_id": n.ListingID,
			"priority":   n.Priority,
		})
		if s.sink != nil {
			if err := s.sink.PublishHostNotification(ctx, n); err != nil {
				entry.WithError(err).Warn("deliver host notification failed")
				continue
			}
		}
		entry.Infof("notified host %d with score %d", n.HostID, n.Score)
		sent++
	}
	return sent, nil
}

// HostAlerts lists a host's listings scoring under HostAlertThreshold,
// worst first, capped at limit. It does not touch dedup state.
func (s *Sweeper) HostAlerts(ctx context.Context, listings []model.Listing, limit int) []Notification {
	low := s.perf.Below(ctx, listings, HostAlertThreshold, s.windowDays)
	if limit > 0 && len(low) > limit {
		low = low[:limit]
	}
	now := s.now()
	out := make([]Notification, 0, len(low))
	for _, lp := range low {
		out = append(out, newNotification(lp, now))
	}
	return out
}

func newNotification(lp performance.LowPerformer, now time.Time) Notification {
	score := lp.Performance.Metrics.PerformanceScore
	return Notification{
		ID:              uuid.NewString(),
		Type:            NotificationType,
		HostID:          lp.Listing.OwnerID,
		ListingID:       lp.Listing.ID,
		ListingTitle:    lp.Listing.Title,
		Score:           score,
		Status:          lp.Performance.Status,
		Priority:        PriorityFor(score),
		Message:         Message(lp.Listing.Title, score),
		Recommendations: lp.Performance.Recommendations,
		CreatedAt:       now,
	}
}
