package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/app"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/For-Hives/beswib-sub000/internal/payments"
)

const maxWebhookBody = 1 << 20

const captureCompletedEvent = "PAYMENT.CAPTURE.COMPLETED"

// Reconciler is the minimal interface the webhook endpoint needs.
type Reconciler interface {
	Reconcile(ctx context.Context, n domain.CaptureNotification) (app.ReconcileResult, error)
}

// HandleCaptureCompleted consumes the processor's capture webhook. The
// processor delivers at-least-once and stops retrying on any 2xx, so
// duplicates answer 200 exactly like first deliveries. Only a store failure
// earns a 5xx (and therefore a redelivery).
func HandleCaptureCompleted(svc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable body")
			return
		}

		var payload captureWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidNotification, "malformed notification payload")
			return
		}

		// Unknown event types are acknowledged and dropped; a 4xx would
		// just make the processor retry something we will never handle.
		if payload.EventType != captureCompletedEvent {
			writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
			return
		}

		n, err := payload.normalize(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidNotification, err.Error())
			return
		}

		res, err := svc.Reconcile(r.Context(), n)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "reconciliation failed")
			return
		}

		resp := webhookResponse{
			Status:        "settled",
			TransactionID: res.TransactionID,
			ListingID:     res.ListingID,
		}
		if res.AlreadySettled {
			resp.Status = "duplicate"
		}
		if res.Inconsistency != "" {
			resp.Status = "inconsistent"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type captureWebhookPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		Payer struct {
			PayerID      string `json:"payer_id"`
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
	} `json:"resource"`
}

type validationError string

func (e validationError) Error() string { return string(e) }

// normalize validates the duck-typed webhook body and produces the strict
// notification struct the reconciler works with. Nothing malformed gets past
// this point.
func (p captureWebhookPayload) normalize(raw []byte) (domain.CaptureNotification, error) {
	orderID := p.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderID == "" {
		return domain.CaptureNotification{}, validationError("notification missing order id")
	}
	if p.Resource.ID == "" {
		return domain.CaptureNotification{}, validationError("notification missing capture id")
	}
	if p.Resource.Status != "COMPLETED" {
		return domain.CaptureNotification{}, validationError("capture status is not COMPLETED")
	}

	amount, err := strconv.ParseFloat(p.Resource.Amount.Value, 64)
	if err != nil || amount <= 0 {
		return domain.CaptureNotification{}, validationError("invalid capture amount")
	}

	correlation := payments.DecodeCorrelation(p.Resource.CustomID)

	return domain.CaptureNotification{
		ExternalOrderID:   orderID,
		ExternalCaptureID: p.Resource.ID,
		ListingID:         correlation.ListingID,
		BuyerID:           correlation.BuyerID,
		SellerID:          correlation.SellerID,
		Amount:            amount,
		Currency:          p.Resource.Amount.CurrencyCode,
		Status:            p.Resource.Status,
		PayerReference:    p.Resource.Payer.PayerID,
		ReceivedAt:        time.Now().UTC(),
		Raw:               raw,
	}, nil
}

type webhookResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ListingID     string `json:"listing_id,omitempty"`
}
