package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionRepository backs both the order orchestrator and the settlement
// reconciler. The unique index on external_order_id is what makes duplicate
// webhook deliveries lose the insert race instead of double-writing.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *TransactionRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Listing{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Listing{}, domain.ErrListingNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *TransactionRepository) GetPayoutAccount(ctx context.Context, sellerID string) (string, error) {
	const query = `SELECT merchant_id FROM payout_accounts WHERE seller_id = $1`

	var merchantID string
	err := r.queryRow(ctx, query, sellerID).Scan(&merchantID)
	if err != nil {
		if isInvalidUUID(err) {
			return "", domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return "", domain.ErrNoPayoutAccount
		}
		return "", fmt.Errorf("get payout account: %w", err)
	}
	return merchantID, nil
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, t domain.Transaction) error {
	const stmt = `
INSERT INTO transactions (id, bib_id, buyer_id, seller_id, amount, platform_fee, status,
	external_order_id, external_capture_id, payer_reference, currency, captured_at,
	raw_notification, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.exec(ctx, stmt,
		t.ID,
		nullableText(t.BibID),
		nullableText(t.BuyerID),
		nullableText(t.SellerID),
		t.Amount,
		t.PlatformFee,
		t.Status,
		t.ExternalOrderID,
		nullableText(t.ExternalCaptureID),
		nullableText(t.PayerReference),
		t.Currency,
		t.CapturedAt,
		nullableJSON(t.RawNotification),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTransaction
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, bib_id, buyer_id, seller_id, amount, platform_fee, status,
	external_order_id, external_capture_id, payer_reference, currency, captured_at,
	raw_notification, created_at, updated_at`

func (r *TransactionRepository) FindTransactionByExternalOrderID(ctx context.Context, externalOrderID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE external_order_id = $1`

	t, err := scanTransaction(r.queryRow(ctx, query, externalOrderID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find transaction by external order id: %w", err)
	}
	return &t, nil
}

// RecordCapture writes the settlement metadata and flips the transaction to
// succeeded. Capture metadata is write-once: re-applying the same
// notification overwrites it with identical values.
func (r *TransactionRepository) RecordCapture(ctx context.Context, transactionID string, n domain.CaptureNotification, capturedAt time.Time) error {
	const stmt = `
UPDATE transactions
SET status = 'succeeded',
	external_capture_id = $2,
	payer_reference = $3,
	currency = COALESCE(NULLIF($4, ''), currency),
	captured_at = $5,
	raw_notification = $6,
	updated_at = NOW()
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		transactionID,
		nullableText(n.ExternalCaptureID),
		nullableText(n.PayerReference),
		n.Currency,
		capturedAt,
		nullableJSON(n.Raw),
	)
	if err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// MarkListingSold performs the one logical update settlement needs: status
// to sold, buyer set, lock cleared. Conditional on the listing still being
// available, so it fires at most once per listing.
func (r *TransactionRepository) MarkListingSold(ctx context.Context, listingID, buyerID string) (bool, error) {
	const stmt = `
UPDATE listings
SET status = 'sold', buyer_id = $2, locked_at = NULL, updated_at = NOW()
WHERE id = $1 AND status = 'available'`

	tag, err := r.exec(ctx, stmt, listingID, nullableText(buyerID))
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark listing sold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t              domain.Transaction
		bibID          *string
		buyerID        *string
		sellerID       *string
		captureID      *string
		payerReference *string
	)
	err := row.Scan(
		&t.ID,
		&bibID,
		&buyerID,
		&sellerID,
		&t.Amount,
		&t.PlatformFee,
		&t.Status,
		&t.ExternalOrderID,
		&captureID,
		&payerReference,
		&t.Currency,
		&t.CapturedAt,
		&t.RawNotification,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	if bibID != nil {
		t.BibID = *bibID
	}
	if buyerID != nil {
		t.BuyerID = *buyerID
	}
	if sellerID != nil {
		t.SellerID = *sellerID
	}
	if captureID != nil {
		t.ExternalCaptureID = *captureID
	}
	if payerReference != nil {
		t.PayerReference = *payerReference
	}
	return t, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func (r *TransactionRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *TransactionRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
