package app

import (
	"context"
	"errors"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/clock"
	"github.com/For-Hives/beswib-sub000/internal/domain"
)

type ReservationRepository interface {
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	// AcquireLock is a single conditional update: it sets locked_at to at
	// only when the listing is available and unlocked, and reports whether
	// the write happened.
	AcquireLock(ctx context.Context, listingID string, at time.Time) (bool, error)
	ReleaseLock(ctx context.Context, listingID string) error
	// ReleaseLockIf clears locked_at only when it still equals lockedAt, so
	// a lock granted after the caller's read is never clobbered.
	ReleaseLockIf(ctx context.Context, listingID string, lockedAt time.Time) (bool, error)
	ClearExpiredLocks(ctx context.Context, cutoff time.Time) (int, error)
}

type LockState string

const (
	LockStateLocked        LockState = "locked"
	LockStateUnlocked      LockState = "unlocked"
	LockStateLockedByOther LockState = "locked_by_other"
)

// defaultLockTTL bounds how long one buyer can block all others while
// finishing an external payment flow.
const defaultLockTTL = 5 * time.Minute

type ReservationService struct {
	repo    ReservationRepository
	clock   clock.Clock
	lockTTL time.Duration
}

func NewReservationService(repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:    repo,
		clock:   clk,
		lockTTL: defaultLockTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithLockTTL overrides the default reservation TTL.
func WithLockTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// FormatLockToken renders a lock timestamp as the opaque token handed to the
// reserving buyer. The timestamp itself is the token; holding the exact
// value proves ownership of this specific lock.
func FormatLockToken(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseLockToken is the inverse of FormatLockToken.
func ParseLockToken(token string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, token)
	if err != nil {
		return time.Time{}, domain.ErrInvalidLockToken
	}
	return t.UTC(), nil
}

// TryLock grants an exclusive reservation on an available, unlocked listing
// and returns the lock token. Contention outcomes come back as
// domain.ErrAlreadyLocked / domain.ErrListingNotAvailable for the caller to
// branch on.
func (s *ReservationService) TryLock(ctx context.Context, listingID, userID string) (string, error) {
	if listingID == "" || userID == "" {
		return "", domain.ErrInvalidID
	}

	// Postgres keeps microsecond precision, so truncate before writing or
	// the token would no longer round-trip bit-for-bit.
	now := s.clock.Now().Truncate(time.Microsecond)

	acquired, err := s.repo.AcquireLock(ctx, listingID, now)
	if err != nil {
		return "", err
	}
	if acquired {
		return FormatLockToken(now), nil
	}

	// The conditional update did not fire; read once to tell the caller why.
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	if listing.Status != domain.ListingStatusAvailable {
		return "", domain.ErrListingNotAvailable
	}
	return "", domain.ErrAlreadyLocked
}

// CheckLock reports the reservation state as seen by the holder of token.
// A stale lock (older than the TTL) is cleared as a side effect and reported
// as unlocked; abandonment is only ever detected lazily here or by the
// sweeper.
func (s *ReservationService) CheckLock(ctx context.Context, listingID, token string) (LockState, error) {
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return "", err
	}

	// A sold listing can never be (re)locked, whatever locked_at says.
	if listing.Status == domain.ListingStatusSold {
		return LockStateLockedByOther, nil
	}
	if listing.LockedAt == nil {
		return LockStateUnlocked, nil
	}

	now := s.clock.Now()
	if now.Sub(*listing.LockedAt) > s.lockTTL {
		if _, err := s.repo.ReleaseLockIf(ctx, listingID, *listing.LockedAt); err != nil {
			return "", err
		}
		return LockStateUnlocked, nil
	}

	presented, err := ParseLockToken(token)
	if err != nil {
		return LockStateLockedByOther, nil
	}
	if presented.Equal(*listing.LockedAt) {
		return LockStateLocked, nil
	}
	return LockStateLockedByOther, nil
}

// Unlock unconditionally clears the reservation. Idempotent.
func (s *ReservationService) Unlock(ctx context.Context, listingID string) error {
	if listingID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.ReleaseLock(ctx, listingID)
}

// SweepExpired reclaims stale locks across all listings and returns how many
// it cleared. Intended for periodic background invocation.
func (s *ReservationService) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.lockTTL)
	return s.repo.ClearExpiredLocks(ctx, cutoff)
}

// IsContention reports whether err is an expected contention outcome rather
// than a genuine failure.
func IsContention(err error) bool {
	return errors.Is(err, domain.ErrAlreadyLocked) || errors.Is(err, domain.ErrListingNotAvailable)
}
