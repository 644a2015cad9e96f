package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/For-Hives/beswib-sub000/internal/fees"
)

type SettlementRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindTransactionByExternalOrderID(ctx context.Context, externalOrderID string) (*domain.Transaction, error)
	// CreateTransaction returns domain.ErrDuplicateTransaction when another
	// delivery already inserted a row for the same external order id.
	CreateTransaction(ctx context.Context, tx domain.Transaction) error
	RecordCapture(ctx context.Context, transactionID string, n domain.CaptureNotification, capturedAt time.Time) error
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	// MarkListingSold transitions the listing to sold, sets the buyer and
	// clears the lock in one conditional update; it reports whether the
	// write happened.
	MarkListingSold(ctx context.Context, listingID, buyerID string) (bool, error)
}

type SalePublisher interface {
	PublishSale(ctx context.Context, ev domain.SaleEvent) error
}

// SettlementService reconciles processor capture notifications with the
// listing lifecycle. It is the only code path allowed to enter the sold
// state, and it must stay correct under at-least-once, out-of-order webhook
// delivery.
type SettlementService struct {
	repo      SettlementRepository
	publisher SalePublisher
	fees      fees.Calculator
	clock     clock.Clock
	logger    *log.Logger
}

func NewSettlementService(repo SettlementRepository, publisher SalePublisher, calc fees.Calculator, clk clock.Clock, logger *log.Logger) *SettlementService {
	if logger == nil {
		logger = log.Default()
	}
	return &SettlementService{
		repo:      repo,
		publisher: publisher,
		fees:      calc,
		clock:     clk,
		logger:    logger,
	}
}

type ReconcileResult struct {
	TransactionID string
	ListingID     string
	// AlreadySettled marks a duplicate delivery; the first delivery already
	// applied every side effect.
	AlreadySettled bool
	// Inconsistency is non-empty when money moved but the listing could not
	// follow (e.g. withdrawn between lock and capture). Business alert, not
	// an error: the transaction stays succeeded and nothing is rolled back.
	Inconsistency string
}

func (s *SettlementService) Reconcile(ctx context.Context, n domain.CaptureNotification) (ReconcileResult, error) {
	if n.ExternalOrderID == "" {
		return ReconcileResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var (
		res  ReconcileResult
		emit *domain.SaleEvent
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tx, err := s.resolveTransaction(txCtx, n, now)
		if err != nil {
			return err
		}

		alreadySucceeded := tx.Status == domain.TransactionStatusSucceeded
		if !alreadySucceeded {
			if err := s.repo.RecordCapture(txCtx, tx.ID, n, now); err != nil {
				return err
			}
		}

		listingID := tx.BibID
		if listingID == "" {
			listingID = n.ListingID
		}
		buyerID := tx.BuyerID
		if buyerID == "" {
			buyerID = n.BuyerID
		}

		res = ReconcileResult{TransactionID: tx.ID, ListingID: listingID}
		if listingID == "" {
			res.Inconsistency = "notification carries no listing correlation"
			return nil
		}

		sold, err := s.repo.MarkListingSold(txCtx, listingID, buyerID)
		if err != nil {
			return err
		}
		if sold {
			emit = &domain.SaleEvent{
				ListingID:  listingID,
				BuyerID:    buyerID,
				SellerID:   tx.SellerID,
				Amount:     tx.Amount,
				OccurredAt: now,
			}
			return nil
		}

		// The conditional update did not fire: either a duplicate delivery
		// already settled the listing, or it left available through another
		// path while money was moving.
		listing, err := s.repo.GetListing(txCtx, listingID)
		if errors.Is(err, domain.ErrListingNotFound) {
			res.Inconsistency = "settled transaction references a missing listing"
			return nil
		}
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingStatusSold && (buyerID == "" || listing.BuyerID == buyerID) {
			res.AlreadySettled = alreadySucceeded
			return nil
		}
		if listing.Status == domain.ListingStatusSold {
			res.Inconsistency = fmt.Sprintf("listing sold to %s but capture names buyer %s", listing.BuyerID, buyerID)
			return nil
		}
		res.Inconsistency = fmt.Sprintf("capture completed but listing is %s, not available", listing.Status)
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if res.Inconsistency != "" {
		s.logger.Printf("ERROR: reconciliation inconsistency order=%s transaction=%s listing=%s: %s",
			n.ExternalOrderID, res.TransactionID, res.ListingID, res.Inconsistency)
	}

	// Publish after commit so a rollback never leaks a sale event. A publish
	// failure is logged, not returned: settlement itself has succeeded.
	if emit != nil {
		if err := s.publisher.PublishSale(ctx, *emit); err != nil {
			s.logger.Printf("WARN: publish sale event listing=%s: %v", emit.ListingID, err)
		}
	}
	return res, nil
}

// resolveTransaction finds the pending transaction for the external order,
// or creates one directly in succeeded state when the order was created
// out-of-band. Losing the insert race to a concurrent delivery falls back to
// the update path.
func (s *SettlementService) resolveTransaction(ctx context.Context, n domain.CaptureNotification, now time.Time) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByExternalOrderID(ctx, n.ExternalOrderID)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx, nil
	}

	created := domain.Transaction{
		ID:                newID(),
		BibID:             n.ListingID,
		BuyerID:           n.BuyerID,
		SellerID:          n.SellerID,
		Amount:            n.Amount,
		PlatformFee:       s.fees.PlatformFee(n.Amount),
		Status:            domain.TransactionStatusSucceeded,
		ExternalOrderID:   n.ExternalOrderID,
		ExternalCaptureID: n.ExternalCaptureID,
		PayerReference:    n.PayerReference,
		Currency:          n.Currency,
		CapturedAt:        &now,
		RawNotification:   n.Raw,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.CreateTransaction(ctx, created); err != nil {
		if !errors.Is(err, domain.ErrDuplicateTransaction) {
			return nil, err
		}
		tx, err = s.repo.FindTransactionByExternalOrderID(ctx, n.ExternalOrderID)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, domain.ErrTransactionNotFound
		}
		return tx, nil
	}
	return &created, nil
}
