package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/For-Hives/beswib-sub000/internal/storage/postgres"
	"github.com/For-Hives/beswib-sub000/internal/testutil"
	"github.com/google/uuid"
)

func pendingTransaction(bibID, externalOrderID string) domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Transaction{
		ID:              uuid.NewString(),
		BibID:           bibID,
		BuyerID:         uuid.NewString(),
		SellerID:        uuid.NewString(),
		Amount:          150,
		PlatformFee:     15,
		Status:          domain.TransactionStatusPending,
		ExternalOrderID: externalOrderID,
		Currency:        "EUR",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestTransactionRepository_DuplicateExternalOrderID(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)
	bibID := testutil.InsertListing(t, ctx, pool, availableListing(uuid.NewString()))

	first := pendingTransaction(bibID, "ORD-1")
	if err := repo.CreateTransaction(ctx, first); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	second := pendingTransaction(bibID, "ORD-1")
	if err := repo.CreateTransaction(ctx, second); !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("CreateTransaction(duplicate) error = %v, want ErrDuplicateTransaction", err)
	}

	found, err := repo.FindTransactionByExternalOrderID(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("FindTransactionByExternalOrderID() error = %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Errorf("found = %+v, want the first insert", found)
	}
}

func TestTransactionRepository_FindUnknownOrderReturnsNil(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)

	found, err := repo.FindTransactionByExternalOrderID(ctx, "ORD-MISSING")
	if err != nil {
		t.Fatalf("FindTransactionByExternalOrderID() error = %v", err)
	}
	if found != nil {
		t.Errorf("found = %+v, want nil", found)
	}
}

func TestTransactionRepository_RecordCapture(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)
	bibID := testutil.InsertListing(t, ctx, pool, availableListing(uuid.NewString()))

	tx := pendingTransaction(bibID, "ORD-1")
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	capturedAt := time.Now().UTC().Truncate(time.Microsecond)
	n := domain.CaptureNotification{
		ExternalOrderID:   "ORD-1",
		ExternalCaptureID: "CAP-1",
		Amount:            150,
		Currency:          "EUR",
		PayerReference:    "PAYER-1",
		Raw:               []byte(`{"id":"WH-1"}`),
	}
	if err := repo.RecordCapture(ctx, tx.ID, n, capturedAt); err != nil {
		t.Fatalf("RecordCapture() error = %v", err)
	}

	got, err := repo.FindTransactionByExternalOrderID(ctx, "ORD-1")
	if err != nil {
		t.Fatalf("FindTransactionByExternalOrderID() error = %v", err)
	}
	if got.Status != domain.TransactionStatusSucceeded {
		t.Errorf("status = %q, want succeeded", got.Status)
	}
	if got.ExternalCaptureID != "CAP-1" || got.PayerReference != "PAYER-1" {
		t.Errorf("capture metadata = %q/%q", got.ExternalCaptureID, got.PayerReference)
	}
	if got.CapturedAt == nil || !got.CapturedAt.Equal(capturedAt) {
		t.Errorf("captured_at = %v, want %v", got.CapturedAt, capturedAt)
	}
	if len(got.RawNotification) == 0 {
		t.Errorf("raw notification not stored")
	}

	if err := repo.RecordCapture(ctx, uuid.NewString(), n, capturedAt); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("RecordCapture(unknown) error = %v, want ErrTransactionNotFound", err)
	}
}

func TestTransactionRepository_MarkListingSold(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)

	lockedAt := time.Now().UTC().Truncate(time.Microsecond)
	l := availableListing(uuid.NewString())
	l.LockedAt = &lockedAt
	id := testutil.InsertListing(t, ctx, pool, l)
	buyerID := uuid.NewString()

	sold, err := repo.MarkListingSold(ctx, id, buyerID)
	if err != nil {
		t.Fatalf("MarkListingSold() error = %v", err)
	}
	if !sold {
		t.Fatalf("MarkListingSold() = false on an available listing")
	}

	got, err := repo.GetListing(ctx, id)
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if got.Status != domain.ListingStatusSold || got.BuyerID != buyerID {
		t.Errorf("listing = %+v, want sold to %s", got, buyerID)
	}
	if got.LockedAt != nil {
		t.Errorf("lock survived the sale")
	}

	// Already sold: the conditional update must not fire again.
	sold, err = repo.MarkListingSold(ctx, id, uuid.NewString())
	if err != nil {
		t.Fatalf("MarkListingSold() second error = %v", err)
	}
	if sold {
		t.Errorf("MarkListingSold() fired twice for one listing")
	}
	got, _ = repo.GetListing(ctx, id)
	if got.BuyerID != buyerID {
		t.Errorf("buyer overwritten on duplicate settlement")
	}
}

func TestTransactionRepository_MarkListingSoldNotAvailable(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)

	l := availableListing(uuid.NewString())
	l.Status = domain.ListingStatusWithdrawn
	id := testutil.InsertListing(t, ctx, pool, l)

	sold, err := repo.MarkListingSold(ctx, id, uuid.NewString())
	if err != nil {
		t.Fatalf("MarkListingSold() error = %v", err)
	}
	if sold {
		t.Errorf("MarkListingSold() fired on a withdrawn listing")
	}
}

func TestTransactionRepository_GetPayoutAccount(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)
	sellerID := uuid.NewString()
	testutil.InsertPayoutAccount(t, ctx, pool, sellerID, "MERCH-9")

	merchantID, err := repo.GetPayoutAccount(ctx, sellerID)
	if err != nil {
		t.Fatalf("GetPayoutAccount() error = %v", err)
	}
	if merchantID != "MERCH-9" {
		t.Errorf("merchant id = %q, want MERCH-9", merchantID)
	}

	if _, err := repo.GetPayoutAccount(ctx, uuid.NewString()); !errors.Is(err, domain.ErrNoPayoutAccount) {
		t.Errorf("GetPayoutAccount(unknown) error = %v, want ErrNoPayoutAccount", err)
	}
}

func TestTransactionRepository_WithTxRollsBackOnError(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := postgres.NewTransactionRepository(pool)
	bibID := testutil.InsertListing(t, ctx, pool, availableListing(uuid.NewString()))

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := repo.CreateTransaction(txCtx, pendingTransaction(bibID, "ORD-RB")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	found, err := repo.FindTransactionByExternalOrderID(ctx, "ORD-RB")
	if err != nil {
		t.Fatalf("FindTransactionByExternalOrderID() error = %v", err)
	}
	if found != nil {
		t.Errorf("transaction survived a rolled back tx: %+v", found)
	}
}
