package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/stay-reservation/internal/database"
	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
	"github.com/iliyamo/stay-reservation/internal/testutil"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := testutil.RequireEnv(t, "TEST_MYSQL_HOST")
	db, err := database.Open(database.Options{
		User:     testutil.RequireEnv(t, "TEST_MYSQL_USER"),
		Password: testutil.RequireEnv(t, "TEST_MYSQL_PASS"),
		Host:     host,
		Port:     "3306",
		Name:     testutil.RequireEnv(t, "TEST_MYSQL_DB"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedListing(t *testing.T, db *sql.DB) (hostID, guestID uint64, listing model.Listing) {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepo(db)
	suffix := time.Now().UnixNano()
	var err error
	hostID, err = users.Create(ctx, fmt.Sprintf("host%d@example.com", suffix), "host", "x", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	guestID, err = users.Create(ctx, fmt.Sprintf("guest%d@example.com", suffix), "guest", "x", model.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	listing = model.Listing{OwnerID: hostID, Title: "Test stay", Description: "d", NightlyPrice: 1000}
	if err := repository.NewListingRepo(db).CreateListing(ctx, &listing); err != nil {
		t.Fatal(err)
	}
	return hostID, guestID, listing
}

func newBooking(listingID, guestID uint64, in time.Time, nights int) *model.Booking {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Booking{
		ListingID:     listingID,
		GuestID:       guestID,
		CheckIn:       in,
		CheckOut:      in.AddDate(0, 0, nights),
		Guests:        model.Guests{Adults: 1},
		Pricing:       model.Pricing{Nights: nights, BasePrice: 1000, Total: 1000},
		Status:        model.BookingConfirmed,
		PaymentStatus: model.PaymentPaid,
		BookedAt:      now,
		ConfirmedAt:   &now,
	}
}

func TestCommitBookingSingleWinner(t *testing.T) {
	db := openTestDB(t)
	_, guestID, listing := seedListing(t, db)
	repo := repository.NewBookingRepo(db)
	checkIn := time.Now().UTC().AddDate(0, 1, 0).Truncate(24 * time.Hour)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			err := repo.CommitBooking(context.Background(), newBooking(listing.ID, guestID, checkIn.AddDate(0, 0, offset%2), 3))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || conflicts != 7 {
		t.Fatalf("wins = %d, conflicts = %d", wins, conflicts)
	}
}

func TestCouponRedemptionRespectsMaxUses(t *testing.T) {
	db := openTestDB(t)
	_, guestID, listing := seedListing(t, db)
	ctx := context.Background()
	coupons := repository.NewCouponRepo(db)
	c := model.Coupon{Code: fmt.Sprintf("it%d", time.Now().UnixNano()), DiscountType: model.DiscountPercent, Amount: 10, MaxUses: 2, IsActive: true}
	if err := coupons.CreateCoupon(ctx, &c); err != nil {
		t.Fatal(err)
	}
	repo := repository.NewBookingRepo(db)
	start := time.Now().UTC().AddDate(0, 2, 0).Truncate(24 * time.Hour)
	for i := 0; i < 3; i++ {
		b := newBooking(listing.ID, guestID, start.AddDate(0, 0, i*5), 2)
		b.CouponID = &c.ID
		err := repo.CommitBooking(ctx, b)
		if i < 2 && err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
		if i == 2 && !errors.Is(err, repository.ErrCouponExhausted) {
			t.Fatalf("third redemption err = %v", err)
		}
	}
	got, err := coupons.FindCouponByCode(ctx, c.Code)
	if err != nil || got.Uses != 2 {
		t.Fatalf("coupon = %+v, %v", got, err)
	}
}

func TestUpdateBookingStatusCompareAndSwap(t *testing.T) {
	db := openTestDB(t)
	_, guestID, listing := seedListing(t, db)
	ctx := context.Background()
	repo := repository.NewBookingRepo(db)
	b := newBooking(listing.ID, guestID, time.Now().UTC().AddDate(0, 3, 0).Truncate(24*time.Hour), 2)
	if err := repo.CommitBooking(ctx, b); err != nil {
		t.Fatal(err)
	}

	cancel := model.StatusChange{From: model.BookingConfirmed, To: model.BookingCancelled, At: time.Now().UTC(), Reason: "Guest cancelled"}
	if err := repo.UpdateBookingStatus(ctx, b.ID, cancel); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateBookingStatus(ctx, b.ID, cancel); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second cancel err = %v", err)
	}
	if err := repo.UpdateBookingStatus(ctx, 1<<40, cancel); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing booking err = %v", err)
	}
	got, _ := repo.GetBooking(ctx, b.ID)
	if got.Status != model.BookingCancelled || got.CancelledAt == nil || got.CancellationReason != "Guest cancelled" || got.ConfirmedAt == nil {
		t.Fatalf("booking = %+v", got)
	}
}
