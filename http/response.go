package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/edgeshelf"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error response matching err. Only unexpected
// failures are logged at error level.
func HandleError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, edgeshelf.ErrNotFound):
		slog.Debug("object not found", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Object not found")
	case errors.As(err, &maxBytes):
		WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds the size limit")
	case errors.Is(err, edgeshelf.ErrInvalidInput):
		slog.Debug("invalid request", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid request")
	case errors.Is(err, edgeshelf.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, edgeshelf.ErrOriginFault):
		slog.Error("origin fault", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
