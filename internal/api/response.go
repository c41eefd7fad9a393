package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/imaging"
	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/lifecycle"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/photos"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// statusFor maps domain errors to HTTP status codes. Zero means the error is
// not one a client can act on.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNotFound),
		errors.Is(err, ledger.ErrItemNotFound),
		errors.Is(err, photos.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, lifecycle.ErrInvalidState),
		errors.Is(err, lifecycle.ErrAlreadyReviewed),
		errors.Is(err, lifecycle.ErrDuplicatePending),
		errors.Is(err, lifecycle.ErrInsufficientStock),
		errors.Is(err, lifecycle.ErrInvalidQuantity),
		errors.Is(err, lifecycle.ErrUnknownAction),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, imaging.ErrUnsupported):
		return http.StatusBadRequest
	}
	return 0
}

// writeError reports err to the client. Unexpected errors are logged and
// answered with a generic 500 carrying fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	if status := statusFor(err); status != 0 {
		jsonError(w, status, err.Error())
		return
	}
	slog.Error(fallback, "error", err)
	jsonError(w, http.StatusInternalServerError, fallback)
}

// logActivity appends to the activity log. Failures are logged, never
// returned to the client.
func logActivity(r *http.Request, rec *audit.Recorder, action model.LogAction, actor lifecycle.Actor, details string, metadata map[string]any) {
	if err := rec.Record(r.Context(), action, actor, details, metadata); err != nil {
		slog.Error("failed to write activity log", "action", action, "error", err)
	}
}
