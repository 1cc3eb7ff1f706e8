package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/stay-reservation/internal/ranking"
)

// BookingLog appends one line per confirmed booking to a log file.
type BookingLog struct {
	path string
	mu   sync.Mutex
}

// NewBookingLog writes to dir/booking.log.
func NewBookingLog(dir string) *BookingLog {
	return &BookingLog{path: filepath.Join(dir, "booking.log")}
}

// Handle implements HandlerFunc.
func (l *BookingLog) Handle(_ context.Context, body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatBookingLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatBookingLine renders the single-line log entry for ev.
func FormatBookingLine(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("[%s] Booking confirmed | ref=%s | booking_id=%d | guest_id=%d | listing_id=%d | host_id=%d | listing=%q | %s -> %s | nights=%d | guests=%d | discount=%.2f | total=%.2f\n",
		ev.ConfirmedAt.UTC().Format(time.RFC3339), ev.Reference, ev.BookingID, ev.GuestID, ev.ListingID, ev.HostID, ev.ListingTitle,
		ev.CheckIn.UTC().Format("2006-01-02"), ev.CheckOut.UTC().Format("2006-01-02"), ev.Nights, ev.Guests, ev.Discount, ev.Total)
}

// Deliverer pushes a host notification to its final channel.
type Deliverer interface {
	Deliver(ctx context.Context, n ranking.Notification) error
}

// HostNotificationHandler decodes notifications and hands them to d.
func HostNotificationHandler(d Deliverer) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var n ranking.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if n.ListingID == 0 || n.HostID == 0 {
			return fmt.Errorf("notification %q missing listing or host", n.ID)
		}
		return d.Deliver(ctx, n)
	}
}
