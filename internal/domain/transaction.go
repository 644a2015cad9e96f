package domain

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the ledger record of one attempted or completed sale.
// ExternalOrderID correlates it to the payment processor's order and is the
// idempotency key for settlement reconciliation.
type Transaction struct {
	ID                string
	BibID             string
	BuyerID           string
	SellerID          string
	Amount            float64
	PlatformFee       float64
	Status            TransactionStatus
	ExternalOrderID   string
	ExternalCaptureID string
	PayerReference    string
	Currency          string
	CapturedAt        *time.Time
	RawNotification   []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
