package domain

import "time"

// SaleEvent is emitted exactly once per listing, when settlement drives it
// into the sold state. External dispatchers (notifications, emails) consume
// it; the engine itself never reads it back.
type SaleEvent struct {
	ListingID  string    `json:"listing_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
