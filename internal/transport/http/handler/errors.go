package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-auth-api/internal/domain"
)

// httpError maps a domain error onto an HTTP status and JSON body. Anything it
// does not recognize is a 500 with a generic message; the detail goes to the
// log only.
func httpError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var rl *domain.RateLimitError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ValidationEnvelope{Error: "validation failed", Fields: ve.Fields})
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(rl.WaitSeconds))
		writeJSON(w, http.StatusTooManyRequests, RateLimitEnvelope{Error: err.Error(), WaitSeconds: rl.WaitSeconds})
	case errors.Is(err, domain.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotVerified):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrCodeExpired),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrTokenInvalidOrExpired),
		errors.Is(err, domain.ErrNoOp),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
