package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/For-Hives/beswib-sub000/internal/app"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ListingManager is the minimal interface the seller-facing endpoints need.
type ListingManager interface {
	CreateListing(ctx context.Context, in app.CreateListingInput) (domain.Listing, error)
	UpdatePrice(ctx context.Context, listingID string, price float64) error
	Withdraw(ctx context.Context, listingID string) error
	Relist(ctx context.Context, listingID string) error
	RegeneratePrivateToken(ctx context.Context, listingID string) (string, error)
}

func HandleCreateListing(svc ListingManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createListingRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		listing, err := svc.CreateListing(r.Context(), app.CreateListingInput{
			SellerID:      req.SellerID,
			Price:         req.Price,
			OriginalPrice: req.OriginalPrice,
			Visibility:    domain.ListingVisibility(req.Visibility),
		})
		if err != nil {
			writeListingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, listingResponse{
			ID:           listing.ID,
			SellerID:     listing.SellerID,
			Status:       string(listing.Status),
			Price:        listing.Price,
			Visibility:   string(listing.Visibility),
			PrivateToken: listing.PrivateToken,
			CreatedAt:    listing.CreatedAt,
		})
	}
}

func HandleUpdatePrice(svc ListingManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID := chi.URLParam(r, "id")

		var req updatePriceRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.UpdatePrice(r.Context(), listingID, req.Price); err != nil {
			writeListingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
	}
}

func HandleWithdraw(svc ListingManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Withdraw(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeListingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "withdrawn"})
	}
}

func HandleRelist(svc ListingManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Relist(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeListingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "available"})
	}
}

func HandleRegenerateToken(svc ListingManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := svc.RegeneratePrivateToken(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeListingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, privateTokenResponse{PrivateToken: token})
	}
}

func writeListingError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		writeError(w, http.StatusNotFound, codeListingNotFound, err.Error())
	case errors.Is(err, domain.ErrSoldImmutable):
		writeError(w, http.StatusConflict, codeSoldImmutable, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrListingNotAvailable):
		writeError(w, http.StatusConflict, codeListingNotAvailable, err.Error())
	case errors.Is(err, domain.ErrNotPrivateListing):
		writeError(w, http.StatusConflict, codeNotPrivateListing, err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
	case errors.Is(err, domain.ErrSellerRequired):
		writeError(w, http.StatusBadRequest, codeSellerRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type createListingRequest struct {
	SellerID      string  `json:"seller_id"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"original_price"`
	Visibility    string  `json:"visibility"`
}

type updatePriceRequest struct {
	Price float64 `json:"price"`
}

type listingResponse struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	Status       string    `json:"status"`
	Price        float64   `json:"price"`
	Visibility   string    `json:"visibility"`
	PrivateToken string    `json:"private_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type privateTokenResponse struct {
	PrivateToken string `json:"private_token"`
}
