// Package common: respond.go maps the error taxonomy onto HTTP responses.
// Every feature handler answers through these helpers so the mapping lives
// in one place.
package common

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Required  *int64 `json:"required,omitempty"`
	Available *int64 `json:"available,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StatusFor returns the HTTP status and machine code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_credits"
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusOK, "already_processed"
	case errors.Is(err, ErrInvalidReference):
		return http.StatusNotFound, "invalid_reference"
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, ErrSelfReferral):
		return http.StatusUnprocessableEntity, "self_referral"
	case errors.Is(err, ErrTaskNotCompleted):
		return http.StatusUnprocessableEntity, "task_not_completed"
	case errors.Is(err, ErrAmountMismatch):
		return http.StatusUnprocessableEntity, "amount_mismatch"
	case errors.Is(err, ErrMissingAccount):
		return http.StatusBadRequest, "missing_account"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// RespondError writes err using the taxonomy mapping. Client mistakes are
// logged at debug level. Store and unknown faults are logged as errors and
// their details are not sent to the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	body := ErrorBody{Error: err.Error(), Code: code}

	var insufficient *InsufficientBalanceError
	if errors.As(err, &insufficient) {
		body.Required = &insufficient.Required
		body.Available = &insufficient.Available
	}

	if IsClientError(err) {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   code,
		}).Debug("Request rejected")
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		body.Error = "something went wrong, try again"
		body.Retryable = IsRetryable(err)
	}

	RespondJSON(w, status, body)
}

// RespondMessage writes a plain error message with the given status.
func RespondMessage(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorBody{Error: message, Code: code})
}

// RespondJSON writes payload as JSON.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
