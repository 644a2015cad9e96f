package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/For-Hives/beswib-sub000/internal/app"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/For-Hives/beswib-sub000/internal/payments"
	"github.com/go-chi/chi/v5"
)

// OrderCreator is the minimal interface needed to create a payment order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Transaction, error)
}

// HandleCreateOrder creates the external payment order for a listing and
// records the pending transaction.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID := chi.URLParam(r, "id")

		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BuyerID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "buyer_id is required")
			return
		}

		tx, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			ListingID: listingID,
			BuyerID:   req.BuyerID,
		})
		if err != nil {
			var apiErr *payments.APIError
			switch {
			case errors.Is(err, domain.ErrListingNotFound):
				writeError(w, http.StatusNotFound, codeListingNotFound, err.Error())
			case errors.Is(err, domain.ErrListingNotAvailable):
				writeError(w, http.StatusConflict, codeListingNotAvailable, err.Error())
			case errors.Is(err, domain.ErrNoPayoutAccount):
				writeError(w, http.StatusUnprocessableEntity, codeNoPayoutAccount, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.As(err, &apiErr):
				writeError(w, http.StatusBadGateway, codeProcessorError, "payment processor rejected the order")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, createOrderResponse{
			TransactionID:   tx.ID,
			ExternalOrderID: tx.ExternalOrderID,
			Amount:          tx.Amount,
			PlatformFee:     tx.PlatformFee,
			Currency:        tx.Currency,
		})
	}
}

type createOrderRequest struct {
	BuyerID string `json:"buyer_id"`
}

type createOrderResponse struct {
	TransactionID   string  `json:"transaction_id"`
	ExternalOrderID string  `json:"external_order_id"`
	Amount          float64 `json:"amount"`
	PlatformFee     float64 `json:"platform_fee"`
	Currency        string  `json:"currency"`
}
