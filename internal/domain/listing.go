package domain

import "time"

type ListingStatus string

const (
	ListingStatusAvailable        ListingStatus = "available"
	ListingStatusSold             ListingStatus = "sold"
	ListingStatusWithdrawn        ListingStatus = "withdrawn"
	ListingStatusExpired          ListingStatus = "expired"
	ListingStatusValidationFailed ListingStatus = "validation_failed"
)

type ListingVisibility string

const (
	ListingPublic  ListingVisibility = "public"
	ListingPrivate ListingVisibility = "private"
)

// Listing is one sellable race-entry credential (a "bib").
// LockedAt doubles as the reservation flag and the lock token: a non-nil
// value means some buyer holds an exclusive claim on the listing.
type Listing struct {
	ID            string
	SellerID      string
	BuyerID       string // set only when Status == sold
	Status        ListingStatus
	Price         float64
	OriginalPrice float64
	LockedAt      *time.Time
	Visibility    ListingVisibility
	PrivateToken  string // non-empty only for private listings
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l Listing) IsLocked() bool {
	return l.LockedAt != nil
}
