package app

import (
	"context"

	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/domain"
)

type ListingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateListing(ctx context.Context, listing domain.Listing) error
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error)
	UpdatePrice(ctx context.Context, id string, price float64) error
	// SetStatus writes the new status and, when clearLock is set, clears
	// locked_at in the same statement.
	SetStatus(ctx context.Context, id string, status domain.ListingStatus, clearLock bool) error
	SetPrivateToken(ctx context.Context, id, token string) error
}

// ListingService covers the seller-facing lifecycle operations. It can drive
// every legal transition except into sold; that one belongs exclusively to
// the settlement reconciler.
type ListingService struct {
	repo  ListingRepository
	clock clock.Clock
}

func NewListingService(repo ListingRepository, clk clock.Clock) *ListingService {
	return &ListingService{
		repo:  repo,
		clock: clk,
	}
}

type CreateListingInput struct {
	SellerID      string
	Price         float64
	OriginalPrice float64
	Visibility    domain.ListingVisibility
}

func (s *ListingService) CreateListing(ctx context.Context, in CreateListingInput) (domain.Listing, error) {
	if in.SellerID == "" {
		return domain.Listing{}, domain.ErrSellerRequired
	}
	if in.Price <= 0 {
		return domain.Listing{}, domain.ErrInvalidPrice
	}
	if in.OriginalPrice <= 0 {
		in.OriginalPrice = in.Price
	}
	if in.Visibility == "" {
		in.Visibility = domain.ListingPublic
	}

	now := s.clock.Now()
	listing := domain.Listing{
		ID:            newID(),
		SellerID:      in.SellerID,
		Status:        domain.ListingStatusAvailable,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Visibility:    in.Visibility,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if listing.Visibility == domain.ListingPrivate {
		listing.PrivateToken = newPrivateToken()
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return domain.Listing{}, err
	}
	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, domain.ErrInvalidID
	}
	return s.repo.GetListing(ctx, id)
}

// UpdatePrice changes the asking price. Only allowed while the listing is
// available.
func (s *ListingService) UpdatePrice(ctx context.Context, listingID string, price float64) error {
	if listingID == "" {
		return domain.ErrInvalidID
	}
	if price <= 0 {
		return domain.ErrInvalidPrice
	}

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		listing, err := s.repo.GetListingForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingStatusSold {
			return domain.ErrSoldImmutable
		}
		if listing.Status != domain.ListingStatusAvailable {
			return domain.ErrListingNotAvailable
		}
		return s.repo.UpdatePrice(txCtx, listingID, price)
	})
}

// Withdraw takes an available listing off the market and releases any active
// reservation with it.
func (s *ListingService) Withdraw(ctx context.Context, listingID string) error {
	return s.transition(ctx, listingID, domain.ListingStatusWithdrawn)
}

// Relist puts a withdrawn or validation_failed listing back on the market.
func (s *ListingService) Relist(ctx context.Context, listingID string) error {
	return s.transition(ctx, listingID, domain.ListingStatusAvailable)
}

// Expire marks an available listing as expired (its race has passed).
func (s *ListingService) Expire(ctx context.Context, listingID string) error {
	return s.transition(ctx, listingID, domain.ListingStatusExpired)
}

func (s *ListingService) transition(ctx context.Context, listingID string, to domain.ListingStatus) error {
	if listingID == "" {
		return domain.ErrInvalidID
	}
	// Seller-facing paths must never enter sold, even though the table
	// abstractly allows available -> sold.
	if to == domain.ListingStatusSold {
		return domain.ErrSoldImmutable
	}

	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		listing, err := s.repo.GetListingForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingStatusSold {
			return domain.ErrSoldImmutable
		}
		if err := domain.CheckTransition(listing.Status, to); err != nil {
			return err
		}
		// Leaving available through any path clears the lock.
		return s.repo.SetStatus(txCtx, listingID, to, true)
	})
}

// RegeneratePrivateToken replaces the share token of a private listing.
// Only one token is ever active.
func (s *ListingService) RegeneratePrivateToken(ctx context.Context, listingID string) (string, error) {
	if listingID == "" {
		return "", domain.ErrInvalidID
	}

	var token string
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		listing, err := s.repo.GetListingForUpdate(txCtx, listingID)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingStatusSold {
			return domain.ErrSoldImmutable
		}
		if listing.Visibility != domain.ListingPrivate {
			return domain.ErrNotPrivateListing
		}
		token = newPrivateToken()
		return s.repo.SetPrivateToken(txCtx, listingID, token)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
