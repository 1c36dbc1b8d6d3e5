package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/itsmycolor/commerce-core/internal/domain/coupon"
	"github.com/itsmycolor/commerce-core/internal/domain/order"
	"github.com/itsmycolor/commerce-core/internal/domain/payment"
	"github.com/itsmycolor/commerce-core/internal/domain/settlement"
	"github.com/itsmycolor/commerce-core/internal/toss"
)

// errorBody is the uniform error response payload.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

// writeDomainError maps domain errors onto the HTTP taxonomy: validation and
// state conflicts are 400 with the specific reason, lookups are 404,
// ownership is 403, gateway failures are 502, everything else is 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch status := classify(err); status {
	case http.StatusInternalServerError:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
	case http.StatusBadGateway:
		writeError(w, status, "payment gateway error")
	default:
		writeError(w, status, rootCause(err).Error())
	}
}

func classify(err error) int {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	}

	var (
		iqErr  *order.InvalidQuantityError
		amErr  *order.AmountMismatchError
		apiErr *toss.APIError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrOrderFinalized),
		errors.Is(err, order.ErrDuplicateTracking),
		errors.Is(err, order.ErrBlankTracking),
		errors.Is(err, order.ErrInvalidStatus),
		errors.As(err, &iqErr),
		errors.As(err, &amErr):
		return http.StatusBadRequest
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrNotOwner),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrBelowMinimum):
		// A bad coupon reference is a request validation failure, not a 404:
		// the order, not the coupon, is the addressed resource.
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrNotPaid),
		errors.Is(err, payment.ErrAlreadyCanceled),
		errors.Is(err, payment.ErrAlreadyPaid):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrExists),
		errors.Is(err, settlement.ErrNoSales),
		errors.Is(err, settlement.ErrInvalidState),
		errors.Is(err, settlement.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// rootCause unwraps to the innermost error so responses carry the sentinel
// message without internal wrap context.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// decodeWebhook decodes without writing an error response; webhook endpoints
// answer 200 even for malformed payloads.
func decodeWebhook(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
