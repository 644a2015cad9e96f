package domain

import "time"

// CaptureNotification is the normalized form of a processor
// capture-completed webhook. The transport layer validates the raw payload
// and builds this struct before any business logic runs.
type CaptureNotification struct {
	ExternalOrderID   string
	ExternalCaptureID string
	ListingID         string
	// BuyerID and SellerID are best-effort: present only when the order was
	// created with our correlation metadata.
	BuyerID        string
	SellerID       string
	Amount         float64
	Currency       string
	Status         string
	PayerReference string
	ReceivedAt     time.Time
	Raw            []byte
}
