package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/api-yamdb/internal/domain"
)

const (
	msgTryLater    = "Technical error occurred. Please try again later."
	msgInvalidCode = "Invalid or expired confirmation code."
)

// writeServiceError translates a service error into a response. Backend details
// are logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve domain.ValidationErrors
		fe *domain.FieldError
		vf *domain.VerificationError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ve)
	case errors.As(err, &fe):
		writeFieldError(w, http.StatusBadRequest, fe.Field, fe.Message)
	case errors.As(err, &vf):
		writeVerificationError(w, r, vf)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeVerificationError(w http.ResponseWriter, r *http.Request, e *domain.VerificationError) {
	if e.Err != nil {
		slog.Warn("verification failed", "kind", e.Kind.String(), "path", r.URL.Path, "err", e.Err)
	}
	switch e.Kind {
	case domain.KindEmptyIdentity:
		writeFieldError(w, http.StatusBadRequest, "username", e.Message)
	case domain.KindDeliveryFailed:
		writeFieldError(w, http.StatusBadRequest, "email", e.Message)
	case domain.KindCodeNotFound, domain.KindCodeExpired, domain.KindInvalidCode:
		// Same answer for all three kinds; the kind is only logged.
		slog.Info("confirmation code rejected", "kind", e.Kind.String(), "path", r.URL.Path)
		writeFieldError(w, http.StatusBadRequest, "confirmation_code", msgInvalidCode)
	case domain.KindGenerationFailed:
		writeFieldError(w, http.StatusBadRequest, domain.NonFieldErrors, msgTryLater)
	case domain.KindCheckFailed:
		writeError(w, http.StatusServiceUnavailable, msgTryLater)
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
