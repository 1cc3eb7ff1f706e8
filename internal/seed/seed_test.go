package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
	"github.com/iliyamo/stay-reservation/internal/testutil"
)

type fakeUsers struct {
	byEmail map[string]model.User
}

func (f *fakeUsers) Create(_ context.Context, email, username, hash, role string) (uint64, error) {
	id := uint64(len(f.byEmail) + 1)
	f.byEmail[email] = model.User{ID: id, Email: email, Username: username, PasswordHash: hash, Role: role}
	return id, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

const fixture = `
users:
  - email: Host@Example.com
    password: Sup3rSecret!
  - email: admin@example.com
    password: Sup3rSecret!
    role: admin
listings:
  - owner: host@example.com
    title: Loft
    location: Berlin
    nightly_price: 120
coupons:
  - code: welcome10
    discount_type: PERCENT
    amount: 10
    expires_at: 2026-12-31T23:59:59Z
`

func TestApply(t *testing.T) {
	f, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	users := &fakeUsers{byEmail: map[string]model.User{}}
	store := testutil.NewMemoryStore()

	res, err := Apply(context.Background(), f, users, store, 4, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Users: 2, Listings: 1, Coupons: 1}) {
		t.Fatalf("result = %+v", res)
	}
	host := users.byEmail["host@example.com"]
	if host.Role != model.RoleUser || host.Username != "host" || host.PasswordHash == "Sup3rSecret!" {
		t.Fatalf("host = %+v", host)
	}
	if users.byEmail["admin@example.com"].Role != model.RoleAdmin {
		t.Fatal("admin role not applied")
	}

	ls, _ := store.ListingsByOwner(context.Background(), host.ID)
	if len(ls) != 1 || ls[0].Title != "Loft" {
		t.Fatalf("listings = %+v", ls)
	}
	cp, err := store.FindCouponByCode(context.Background(), "WELCOME10")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	if cp.DiscountType != model.DiscountPercent || cp.ExpiresAt == nil || !cp.ExpiresAt.Equal(want) || !cp.IsActive {
		t.Fatalf("coupon = %+v", cp)
	}

	// Second run keeps users and coupons.
	res, err = Apply(context.Background(), f, users, store, 4, testutil.QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Users != 0 || res.Coupons != 0 {
		t.Fatalf("second run = %+v", res)
	}
}

func TestApplyRejectsUnknownOwner(t *testing.T) {
	f := &Fixture{Listings: []Listing{{Owner: "ghost@example.com", Title: "Nowhere"}}}
	_, err := Apply(context.Background(), f, &fakeUsers{byEmail: map[string]model.User{}}, testutil.NewMemoryStore(), 4, testutil.QuietLogger())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadRepoFixture(t *testing.T) {
	path := filepath.Join("..", "..", "fixtures", "seed.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("fixture not found")
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Users) == 0 || len(f.Listings) == 0 || len(f.Coupons) == 0 {
		t.Fatalf("fixture = %+v", f)
	}
}
