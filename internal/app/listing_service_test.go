package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/domain"
)

type fakeListingRepo struct {
	listings map[string]*domain.Listing
}

func newFakeListingRepo(listings ...domain.Listing) *fakeListingRepo {
	repo := &fakeListingRepo{listings: make(map[string]*domain.Listing)}
	for i := range listings {
		l := listings[i]
		repo.listings[l.ID] = &l
	}
	return repo
}

func (r *fakeListingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeListingRepo) CreateListing(_ context.Context, l domain.Listing) error {
	cp := l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeListingRepo) GetListing(_ context.Context, id string) (domain.Listing, error) {
	l, ok := r.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return *l, nil
}

func (r *fakeListingRepo) GetListingForUpdate(ctx context.Context, id string) (domain.Listing, error) {
	return r.GetListing(ctx, id)
}

func (r *fakeListingRepo) UpdatePrice(_ context.Context, id string, price float64) error {
	l, ok := r.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Price = price
	return nil
}

func (r *fakeListingRepo) SetStatus(_ context.Context, id string, status domain.ListingStatus, clearLock bool) error {
	l, ok := r.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.Status = status
	if clearLock {
		l.LockedAt = nil
	}
	return nil
}

func (r *fakeListingRepo) SetPrivateToken(_ context.Context, id, token string) error {
	l, ok := r.listings[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	l.PrivateToken = token
	return nil
}

func TestCreateListingDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeListingRepo()
	svc := NewListingService(repo, clock.NewFixed(now))

	listing, err := svc.CreateListing(context.Background(), CreateListingInput{
		SellerID: "seller-1",
		Price:    80,
	})
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}

	if listing.ID == "" {
		t.Errorf("no id assigned")
	}
	if listing.Status != domain.ListingStatusAvailable {
		t.Errorf("status = %q, want available", listing.Status)
	}
	if listing.OriginalPrice != 80 {
		t.Errorf("original price = %v, want price fallback 80", listing.OriginalPrice)
	}
	if listing.Visibility != domain.ListingPublic {
		t.Errorf("visibility = %q, want public", listing.Visibility)
	}
	if listing.PrivateToken != "" {
		t.Errorf("public listing got a private token")
	}
	if !listing.CreatedAt.Equal(now) {
		t.Errorf("created at = %v, want %v", listing.CreatedAt, now)
	}
}

func TestCreateListingPrivateGetsToken(t *testing.T) {
	repo := newFakeListingRepo()
	svc := NewListingService(repo, clock.NewSystem())

	listing, err := svc.CreateListing(context.Background(), CreateListingInput{
		SellerID:   "seller-1",
		Price:      80,
		Visibility: domain.ListingPrivate,
	})
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}
	if listing.PrivateToken == "" {
		t.Errorf("private listing created without a token")
	}
}

func TestCreateListingValidation(t *testing.T) {
	svc := NewListingService(newFakeListingRepo(), clock.NewSystem())

	tests := []struct {
		name    string
		input   CreateListingInput
		wantErr error
	}{
		{"missing seller", CreateListingInput{Price: 50}, domain.ErrSellerRequired},
		{"zero price", CreateListingInput{SellerID: "s", Price: 0}, domain.ErrInvalidPrice},
		{"negative price", CreateListingInput{SellerID: "s", Price: -5}, domain.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateListing(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateListing() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdatePriceOnlyWhileAvailable(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.ListingStatus
		wantErr error
	}{
		{"available", domain.ListingStatusAvailable, nil},
		{"sold", domain.ListingStatusSold, domain.ErrSoldImmutable},
		{"withdrawn", domain.ListingStatusWithdrawn, domain.ErrListingNotAvailable},
		{"expired", domain.ListingStatusExpired, domain.ErrListingNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeListingRepo(domain.Listing{
				ID: "l1", SellerID: "s", Status: tt.status, Price: 100,
			})
			svc := NewListingService(repo, clock.NewSystem())

			err := svc.UpdatePrice(context.Background(), "l1", 90)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdatePrice() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && repo.listings["l1"].Price != 90 {
				t.Errorf("price = %v, want 90", repo.listings["l1"].Price)
			}
			if tt.wantErr != nil && repo.listings["l1"].Price != 100 {
				t.Errorf("price changed to %v on rejected update", repo.listings["l1"].Price)
			}
		})
	}
}

func TestUpdatePriceRejectsNonPositive(t *testing.T) {
	svc := NewListingService(newFakeListingRepo(), clock.NewSystem())
	if err := svc.UpdatePrice(context.Background(), "l1", 0); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("UpdatePrice(0) error = %v, want ErrInvalidPrice", err)
	}
}

func TestWithdrawReleasesLock(t *testing.T) {
	lockedAt := time.Now().UTC()
	repo := newFakeListingRepo(domain.Listing{
		ID: "l1", SellerID: "s", Status: domain.ListingStatusAvailable, Price: 100, LockedAt: &lockedAt,
	})
	svc := NewListingService(repo, clock.NewSystem())

	if err := svc.Withdraw(context.Background(), "l1"); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	l := repo.listings["l1"]
	if l.Status != domain.ListingStatusWithdrawn {
		t.Errorf("status = %q, want withdrawn", l.Status)
	}
	if l.LockedAt != nil {
		t.Errorf("lock survived withdrawal")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.ListingStatus
		op      func(*ListingService, context.Context) error
		want    domain.ListingStatus
		wantErr error
	}{
		{
			name: "relist withdrawn",
			from: domain.ListingStatusWithdrawn,
			op:   func(s *ListingService, ctx context.Context) error { return s.Relist(ctx, "l1") },
			want: domain.ListingStatusAvailable,
		},
		{
			name: "relist validation_failed",
			from: domain.ListingStatusValidationFailed,
			op:   func(s *ListingService, ctx context.Context) error { return s.Relist(ctx, "l1") },
			want: domain.ListingStatusAvailable,
		},
		{
			name: "expire available",
			from: domain.ListingStatusAvailable,
			op:   func(s *ListingService, ctx context.Context) error { return s.Expire(ctx, "l1") },
			want: domain.ListingStatusExpired,
		},
		{
			name:    "withdraw sold",
			from:    domain.ListingStatusSold,
			op:      func(s *ListingService, ctx context.Context) error { return s.Withdraw(ctx, "l1") },
			wantErr: domain.ErrSoldImmutable,
		},
		{
			name:    "relist expired",
			from:    domain.ListingStatusExpired,
			op:      func(s *ListingService, ctx context.Context) error { return s.Relist(ctx, "l1") },
			wantErr: &domain.InvalidTransitionError{From: domain.ListingStatusExpired, To: domain.ListingStatusAvailable},
		},
		{
			name:    "withdraw already withdrawn",
			from:    domain.ListingStatusWithdrawn,
			op:      func(s *ListingService, ctx context.Context) error { return s.Withdraw(ctx, "l1") },
			wantErr: &domain.InvalidTransitionError{From: domain.ListingStatusWithdrawn, To: domain.ListingStatusWithdrawn},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeListingRepo(domain.Listing{
				ID: "l1", SellerID: "s", Status: tt.from, Price: 100,
			})
			svc := NewListingService(repo, clock.NewSystem())

			err := tt.op(svc, context.Background())
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("transition error = %v", err)
				}
				if got := repo.listings["l1"].Status; got != tt.want {
					t.Errorf("status = %q, want %q", got, tt.want)
				}
			case *domain.InvalidTransitionError:
				var invalid *domain.InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("error = %v, want InvalidTransitionError", err)
				}
				if invalid.From != want.From || invalid.To != want.To {
					t.Errorf("transition error %v, want %v", invalid, want)
				}
			default:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestRegeneratePrivateToken(t *testing.T) {
	repo := newFakeListingRepo(domain.Listing{
		ID: "l1", SellerID: "s", Status: domain.ListingStatusAvailable, Price: 100,
		Visibility: domain.ListingPrivate, PrivateToken: "old-token",
	})
	svc := NewListingService(repo, clock.NewSystem())

	token, err := svc.RegeneratePrivateToken(context.Background(), "l1")
	if err != nil {
		t.Fatalf("RegeneratePrivateToken() error = %v", err)
	}
	if token == "" || token == "old-token" {
		t.Errorf("token = %q, want fresh token", token)
	}
	if repo.listings["l1"].PrivateToken != token {
		t.Errorf("stored token = %q, want %q", repo.listings["l1"].PrivateToken, token)
	}
}

func TestRegeneratePrivateTokenRejectsPublicListing(t *testing.T) {
	repo := newFakeListingRepo(domain.Listing{
		ID: "l1", SellerID: "s", Status: domain.ListingStatusAvailable, Price: 100,
		Visibility: domain.ListingPublic,
	})
	svc := NewListingService(repo, clock.NewSystem())

	if _, err := svc.RegeneratePrivateToken(context.Background(), "l1"); !errors.Is(err, domain.ErrNotPrivateListing) {
		t.Errorf("RegeneratePrivateToken() error = %v, want ErrNotPrivateListing", err)
	}
}
