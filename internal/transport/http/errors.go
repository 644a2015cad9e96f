package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidPrice        = "invalid_price"
	codeSellerRequired      = "seller_required"
	codeListingNotFound     = "listing_not_found"
	codeListingNotAvailable = "listing_not_available"
	codeAlreadyLocked       = "already_locked"
	codeInvalidTransition   = "invalid_transition"
	codeSoldImmutable       = "sold_immutable"
	codeNotPrivateListing   = "not_private_listing"
	codeNoPayoutAccount     = "no_payout_account"
	codeProcessorError      = "processor_error"
	codeInvalidNotification = "invalid_notification"
	codeTooManyRequests     = "too_many_requests"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
