package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tailorshop/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeOrderError maps order and photo failures to status codes.
func writeOrderError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOrderImmutable), errors.Is(err, service.ErrOrderLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPhotoTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidProgress),
		errors.Is(err, service.ErrMissingGarment),
		errors.Is(err, service.ErrInvalidUrgency),
		errors.Is(err, service.ErrInvalidMeasurement),
		errors.Is(err, service.ErrTooManyPhotos),
		errors.Is(err, service.ErrNotAnImage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeAuthError answers with the user-facing text for an auth failure.
func writeAuthError(w http.ResponseWriter, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrAccountNotFound), errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrWrongRole), errors.Is(err, service.ErrTailorNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrMissingProfile),
		errors.Is(err, service.ErrResetTokenInvalid):
		status = http.StatusBadRequest
	default:
		slog.Error(op+" failed", "error", err)
	}
	writeError(w, status, service.AuthMessage(err))
}
