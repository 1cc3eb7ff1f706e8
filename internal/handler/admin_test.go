package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
)

func TestCouponAdmin(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, admin := s.user("admin@example.com", model.RoleAdmin)
	_, user := s.user("user@example.com", model.RoleUser)
	body := map[string]any{"code": " summer25 ", "discount_type": "PERCENT", "amount": 25, "expires_at": "2025-08-31"}

	expect(t, s.do(http.MethodGet, "/v1/admin/coupons", "", nil), http.StatusUnauthorized)
	expect(t, s.do(http.MethodPost, "/v1/admin/coupons", user, body), http.StatusForbidden)

	rec := s.do(http.MethodPost, "/v1/admin/coupons", admin, body)
	expect(t, rec, http.StatusCreated)
	cp := decode[model.Coupon](t, rec)
	if cp.Code != "SUMMER25" || !cp.IsActive || cp.CreatedBy == nil {
		t.Fatalf("coupon = %+v", cp)
	}
	wantExp := time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC)
	if cp.ExpiresAt == nil || !cp.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expires_at = %v, want %v", cp.ExpiresAt, wantExp)
	}

	expect(t, s.do(http.MethodPost, "/v1/admin/coupons", admin, body), http.StatusConflict)
	expect(t, s.do(http.MethodPost, "/v1/admin/coupons", admin, map[string]any{"code": "X", "discount_type": "percent", "amount": 150}), http.StatusBadRequest)
	expect(t, s.do(http.MethodPost, "/v1/admin/coupons", admin, map[string]any{"code": "Y", "discount_type": "bogo", "amount": 1}), http.StatusBadRequest)
	expect(t, s.do(http.MethodPost, "/v1/admin/coupons", admin, map[string]any{"code": "Z", "discount_type": "fixed", "amount": 5, "expires_at": "soon"}), http.StatusBadRequest)

	rec = s.do(http.MethodPatch, fmt.Sprintf("/v1/admin/coupons/%d/toggle", cp.ID), admin, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[model.Coupon](t, rec); got.IsActive {
		t.Fatal("coupon still active after toggle")
	}

	rec = s.do(http.MethodGet, "/v1/admin/coupons", admin, nil)
	expect(t, rec, http.StatusOK)
	list := decode[struct {
		Coupons []model.Coupon `json:"coupons"`
	}](t, rec)
	if len(list.Coupons) != 1 {
		t.Fatalf("coupons = %d, want 1", len(list.Coupons))
	}

	expect(t, s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/coupons/%d", cp.ID), admin, nil), http.StatusNoContent)
	expect(t, s.do(http.MethodDelete, fmt.Sprintf("/v1/admin/coupons/%d", cp.ID), admin, nil), http.StatusNotFound)
	expect(t, s.do(http.MethodPatch, "/v1/admin/coupons/999/toggle", admin, nil), http.StatusNotFound)
}

func TestDashboardScopesToOwner(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	hostID, host := s.user("host@example.com", model.RoleUser)
	_, admin := s.user("admin@example.com", model.RoleAdmin)
	_, stranger := s.user("stranger@example.com", model.RoleUser)
	mine := s.store.AddListing(model.Listing{OwnerID: hostID, Title: "Loft", Location: "Berlin", NightlyPrice: 120})
	theirs := s.store.AddListing(model.Listing{OwnerID: hostID + 100, Title: "Barn", Location: "Ghent", NightlyPrice: 80})
	expect(t, s.do(http.MethodGet, fmt.Sprintf("/v1/listings/%d", mine), "", nil), http.StatusOK)
	expect(t, s.do(http.MethodGet, fmt.Sprintf("/v1/listings/%d", theirs), "", nil), http.StatusOK)
	expect(t, s.do(http.MethodGet, fmt.Sprintf("/v1/listings/%d", theirs), "", nil), http.StatusOK)

	rec := s.do(http.MethodGet, "/v1/analytics/dashboard", host, nil)
	expect(t, rec, http.StatusOK)
	if o := decode[model.Overview](t, rec); o.TotalViews != 1 {
		t.Fatalf("host overview = %+v", o)
	}

	rec = s.do(http.MethodGet, "/v1/analytics/dashboard", admin, nil)
	expect(t, rec, http.StatusOK)
	if o := decode[model.Overview](t, rec); o.TotalViews != 3 {
		t.Fatalf("admin overview = %+v", o)
	}

	path := fmt.Sprintf("/v1/analytics/listings/%d", mine)
	expect(t, s.do(http.MethodGet, path, host, nil), http.StatusOK)
	expect(t, s.do(http.MethodGet, path, admin, nil), http.StatusOK)
	expect(t, s.do(http.MethodGet, path, stranger, nil), http.StatusForbidden)
	expect(t, s.do(http.MethodGet, "/v1/analytics/listings/999", host, nil), http.StatusNotFound)
}

func TestListingPerformance(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	hostID, host := s.user("host@example.com", model.RoleUser)
	_, stranger := s.user("stranger@example.com", model.RoleUser)
	id := s.store.AddListing(model.Listing{OwnerID: hostID, Title: "Loft", Location: "Berlin", NightlyPrice: 120})
	path := fmt.Sprintf("/v1/listings/%d/performance?days=7", id)

	expect(t, s.do(http.MethodGet, path, stranger, nil), http.StatusForbidden)

	rec := s.do(http.MethodGet, path, host, nil)
	expect(t, rec, http.StatusOK)
	p := decode[model.Performance](t, rec)
	if p.ListingID != id || p.WindowDays != 7 || p.Metrics.PerformanceScore != 0 {
		t.Fatalf("performance = %+v", p)
	}
	if len(p.Recommendations) == 0 {
		t.Fatal("expected recommendations for an idle listing")
	}

	rec = s.do(http.MethodGet, "/v1/host/performance", host, nil)
	expect(t, rec, http.StatusOK)
	all := decode[struct {
		Listings []model.Performance `json:"listings"`
	}](t, rec)
	if len(all.Listings) != 1 {
		t.Fatalf("host performance = %+v", all)
	}
}

func TestHostNotificationsAndSweep(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	hostID, host := s.user("host@example.com", model.RoleUser)
	_, admin := s.user("admin@example.com", model.RoleAdmin)
	id := s.store.AddListing(model.Listing{OwnerID: hostID, Title: "Quiet loft", Location: "Berlin", NightlyPrice: 120})

	rec := s.do(http.MethodGet, "/v1/host/notifications", host, nil)
	expect(t, rec, http.StatusOK)
	alerts := decode[struct {
		Notifications []struct {
			ListingID uint64 `json:"listing_id"`
			Priority  string `json:"priority"`
		} `json:"notifications"`
		Count int `json:"count"`
	}](t, rec)
	if alerts.Count != 1 || alerts.Notifications[0].ListingID != id || alerts.Notifications[0].Priority != "high" {
		t.Fatalf("alerts = %+v", alerts)
	}

	expect(t, s.do(http.MethodPost, "/v1/admin/performance-check", host, nil), http.StatusForbidden)

	rec = s.do(http.MethodPost, "/v1/admin/performance-check", admin, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[struct {
		Sent int `json:"notifications_sent"`
	}](t, rec); got.Sent != 1 {
		t.Fatalf("sent = %d, want 1", got.Sent)
	}

	// Same day: already notified.
	rec = s.do(http.MethodPost, "/v1/admin/performance-check", admin, nil)
	expect(t, rec, http.StatusOK)
	if got := decode[struct {
		Sent int `json:"notifications_sent"`
	}](t, rec); got.Sent != 0 {
		t.Fatalf("sent = %d, want 0", got.Sent)
	}

	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	if len(s.sink.sent) != 1 || s.sink.sent[0].HostID != hostID {
		t.Fatalf("delivered = %+v", s.sink.sent)
	}
}

func TestRefreshScores(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	_, admin := s.user("admin@example.com", model.RoleAdmin)
	id := s.store.AddListing(model.Listing{OwnerID: 1, Title: "Loft", Location: "Berlin", NightlyPrice: 120})

	rec := s.do(http.MethodPost, "/v1/admin/performance/refresh", admin, nil)
	expect(t, rec, http.StatusOK)

	l, err := s.store.GetListing(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if l.LastRankingUpdate == nil || l.PerformanceStatus == "" {
		t.Fatalf("listing not rescored: %+v", l)
	}
}
