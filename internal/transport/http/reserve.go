package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/For-Hives/beswib-sub000/internal/app"
	"github.com/For-Hives/beswib-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Reserver is the minimal interface the reservation endpoints need.
type Reserver interface {
	TryLock(ctx context.Context, listingID, userID string) (string, error)
	CheckLock(ctx context.Context, listingID, token string) (app.LockState, error)
}

// HandleReserve grants a time-boxed exclusive reservation on a listing.
// Contention is an ordinary 409, answered immediately, never a timeout.
func HandleReserve(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID := chi.URLParam(r, "id")

		var req reserveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "user_id is required")
			return
		}

		token, err := svc.TryLock(r.Context(), listingID, req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrListingNotFound):
				writeError(w, http.StatusNotFound, codeListingNotFound, err.Error())
			case errors.Is(err, domain.ErrAlreadyLocked):
				writeError(w, http.StatusConflict, codeAlreadyLocked, err.Error())
			case errors.Is(err, domain.ErrListingNotAvailable):
				writeError(w, http.StatusConflict, codeListingNotAvailable, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, reserveResponse{
			ListingID: listingID,
			Token:     token,
		})
	}
}

// HandleLockStatus reports whether the presented token still owns the
// listing's reservation. A stale lock is cleared on the way through, so an
// abandoned checkout frees the listing the next time anyone looks.
func HandleLockStatus(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID := chi.URLParam(r, "id")
		token := r.URL.Query().Get("token")

		state, err := svc.CheckLock(r.Context(), listingID, token)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrListingNotFound):
				writeError(w, http.StatusNotFound, codeListingNotFound, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, lockStatusResponse{
			ListingID: listingID,
			State:     string(state),
		})
	}
}

type reserveRequest struct {
	UserID string `json:"user_id"`
}

type reserveResponse struct {
	ListingID string `json:"listing_id"`
	Token     string `json:"token"`
}

type lockStatusResponse struct {
	ListingID string `json:"listing_id"`
	State     string `json:"state"`
}
