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

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const listingColumns = `id, seller_id, buyer_id, status, price, original_price, locked_at, visibility, private_token, created_at, updated_at`

func (r *ListingRepository) CreateListing(ctx context.Context, l domain.Listing) error {
	const stmt = `
INSERT INTO listings (id, seller_id, status, price, original_price, visibility, private_token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		l.ID,
		l.SellerID,
		l.Status,
		l.Price,
		l.OriginalPrice,
		l.Visibility,
		nullableText(l.PrivateToken),
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (r *ListingRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return r.scanListing(r.queryRow(ctx, query, id))
}

func (r *ListingRepository) GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`
	return r.scanListing(r.queryRow(ctx, query, id))
}

func (r *ListingRepository) UpdatePrice(ctx context.Context, id string, price float64) error {
	const stmt = `UPDATE listings SET price = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, price)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) SetStatus(ctx context.Context, id string, status domain.ListingStatus, clearLock bool) error {
	stmt := `UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1`
	if clearLock {
		stmt = `UPDATE listings SET status = $2, locked_at = NULL, updated_at = NOW() WHERE id = $1`
	}

	tag, err := r.exec(ctx, stmt, id, status)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) SetPrivateToken(ctx context.Context, id, token string) error {
	const stmt = `UPDATE listings SET private_token = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id, token)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set private token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

// AcquireLock is the compare-and-set behind tryLock: a single conditional
// update, so two concurrent callers can never both observe locked_at IS NULL
// and both win.
func (r *ListingRepository) AcquireLock(ctx context.Context, listingID string, at time.Time) (bool, error) {
	const stmt = `
UPDATE listings
SET locked_at = $2, updated_at = NOW()
WHERE id = $1 AND status = 'available' AND locked_at IS NULL`

	tag, err := r.exec(ctx, stmt, listingID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ListingRepository) ReleaseLock(ctx context.Context, listingID string) error {
	const stmt = `UPDATE listings SET locked_at = NULL, updated_at = NOW() WHERE id = $1`

	tag, err := r.exec(ctx, stmt, listingID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("release lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) ReleaseLockIf(ctx context.Context, listingID string, lockedAt time.Time) (bool, error) {
	const stmt = `UPDATE listings SET locked_at = NULL, updated_at = NOW() WHERE id = $1 AND locked_at = $2`

	tag, err := r.exec(ctx, stmt, listingID, lockedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("release lock if: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ListingRepository) ClearExpiredLocks(ctx context.Context, cutoff time.Time) (int, error) {
	const stmt = `
UPDATE listings
SET locked_at = NULL, updated_at = NOW()
WHERE locked_at IS NOT NULL AND locked_at < $1`

	tag, err := r.exec(ctx, stmt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear expired locks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ListingRepository) scanListing(row pgx.Row) (domain.Listing, error) {
	l, err := scanListing(row)
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

func scanListing(row pgx.Row) (domain.Listing, error) {
	var (
		l            domain.Listing
		buyerID      *string
		privateToken *string
	)
	err := row.Scan(
		&l.ID,
		&l.SellerID,
		&buyerID,
		&l.Status,
		&l.Price,
		&l.OriginalPrice,
		&l.LockedAt,
		&l.Visibility,
		&privateToken,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	if buyerID != nil {
		l.BuyerID = *buyerID
	}
	if privateToken != nil {
		l.PrivateToken = *privateToken
	}
	return l, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *ListingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ListingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
