package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by domain layers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSubscriptionRequired covers both missing subscriptions and
	// features absent from the active plan.
	ErrSubscriptionRequired = errors.New("subscription required")
	// ErrQuotaExceeded indicates a metered feature hit its plan limit.
	ErrQuotaExceeded = errors.New("feature quota exceeded")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrSubscriptionRequired):
		Problem(w, http.StatusPaymentRequired, "Subscription Required", err.Error())
	case errors.Is(err, ErrQuotaExceeded):
		Problem(w, http.StatusTooManyRequests, "Quota Exceeded", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
