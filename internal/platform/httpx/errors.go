package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors understood by RespondError.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps transport-level errors to JSON error responses. Anything
// unrecognised becomes a 500 without leaking the underlying message.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, "invalid_input", "Missing or invalid fields", err.Error())
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, "not_found", "Not found", "")
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, "forbidden", "Forbidden", "")
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "Internal error", "")
	}
}
