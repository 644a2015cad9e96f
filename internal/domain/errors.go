package domain

import "errors"

var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingNotAvailable  = errors.New("listing not available")
	ErrAlreadyLocked        = errors.New("listing already locked")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrDuplicateTransaction = errors.New("transaction already exists for external order")
	ErrNoPayoutAccount      = errors.New("seller has no payout account")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrSellerRequired       = errors.New("seller id required")
	ErrSoldImmutable        = errors.New("sold listing is immutable")
	ErrNotPrivateListing    = errors.New("listing is not private")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidLockToken     = errors.New("invalid lock token")
)
