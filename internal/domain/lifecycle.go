package domain

import "fmt"

// legalTransitions is the full listing lifecycle. sold and expired are
// terminal; withdrawn and validation_failed can be relisted.
var legalTransitions = map[ListingStatus][]ListingStatus{
	ListingStatusAvailable:        {ListingStatusSold, ListingStatusWithdrawn, ListingStatusExpired},
	ListingStatusWithdrawn:        {ListingStatusAvailable},
	ListingStatusValidationFailed: {ListingStatusAvailable},
	ListingStatusSold:             {},
	ListingStatusExpired:          {},
}

// InvalidTransitionError reports an attempted transition outside the
// lifecycle table.
type InvalidTransitionError struct {
	From ListingStatus
	To   ListingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid listing transition: %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is in the lifecycle table.
// Note the table only governs state legality; who may drive a transition
// (in particular into sold) is enforced by the services.
func CanTransition(from, to ListingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransitionError when from -> to is not
// legal, nil otherwise.
func CheckTransition(from, to ListingStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
