package app

import (
	"context"

	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/For-Hives/beswib-sub000/internal/fees"
	"github.com/For-Hives/beswib-sub000/internal/payments"
)

type OrderRepository interface {
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	GetPayoutAccount(ctx context.Context, sellerID string) (string, error)
	CreateTransaction(ctx context.Context, tx domain.Transaction) error
}

// ProcessorClient creates an order at the external payment processor and
// returns its order id. The processor executes the fee split atomically at
// capture time; we only declare it here.
type ProcessorClient interface {
	CreateOrder(ctx context.Context, req payments.OrderRequest) (string, error)
}

// OrderService builds the external payment order for a reserved listing and
// records the pending transaction. On processor failure nothing is
// persisted, so a retry starts from a clean slate.
type OrderService struct {
	repo      OrderRepository
	processor ProcessorClient
	fees      fees.Calculator
	clock     clock.Clock
	currency  string
}

const defaultCurrency = "EUR"

func NewOrderService(repo OrderRepository, processor ProcessorClient, calc fees.Calculator, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:      repo,
		processor: processor,
		fees:      calc,
		clock:     clk,
		currency:  defaultCurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OrderServiceOption func(*OrderService)

// WithCurrency overrides the settlement currency.
func WithCurrency(code string) OrderServiceOption {
	return func(s *OrderService) {
		if code != "" {
			s.currency = code
		}
	}
}

type CreateOrderInput struct {
	ListingID string
	BuyerID   string
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Transaction, error) {
	if in.ListingID == "" || in.BuyerID == "" {
		return domain.Transaction{}, domain.ErrInvalidID
	}

	listing, err := s.repo.GetListing(ctx, in.ListingID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if listing.Status != domain.ListingStatusAvailable {
		return domain.Transaction{}, domain.ErrListingNotAvailable
	}

	merchantID, err := s.repo.GetPayoutAccount(ctx, listing.SellerID)
	if err != nil {
		return domain.Transaction{}, err
	}

	platformFee := s.fees.PlatformFee(listing.Price)

	externalOrderID, err := s.processor.CreateOrder(ctx, payments.OrderRequest{
		ListingID:        listing.ID,
		BuyerID:          in.BuyerID,
		SellerID:         listing.SellerID,
		SellerMerchantID: merchantID,
		Amount:           listing.Price,
		PlatformFee:      platformFee,
		Currency:         s.currency,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	now := s.clock.Now()
	tx := domain.Transaction{
		ID:              newID(),
		BibID:           listing.ID,
		BuyerID:         in.BuyerID,
		SellerID:        listing.SellerID,
		Amount:          listing.Price,
		PlatformFee:     platformFee,
		Status:          domain.TransactionStatusPending,
		ExternalOrderID: externalOrderID,
		Currency:        s.currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}
