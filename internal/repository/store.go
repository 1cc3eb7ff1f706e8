package repository

import "database/sql"

// Store bundles the repositories behind the booking service, the
// performance aggregator and the HTTP handlers.
type Store struct {
	*ListingRepo
	*BookingRepo
	*CouponRepo
	*AnalyticsRepo
	*InteractionRepo
	*ReviewRepo
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		ListingRepo:     NewListingRepo(db),
		BookingRepo:     NewBookingRepo(db),
		CouponRepo:      NewCouponRepo(db),
		AnalyticsRepo:   NewAnalyticsRepo(db),
		InteractionRepo: NewInteractionRepo(db),
		ReviewRepo:      NewReviewRepo(db),
	}
}
