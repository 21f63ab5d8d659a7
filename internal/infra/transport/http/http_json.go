package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mkrupp/promptbank/internal/domain"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of operations that have nothing else to report.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// WriteError writes {"error": message} with the given status code.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError maps err to a status code and a client-safe message.
// Validation reasons are passed through, ErrNotFound and ErrToolAlreadyExists map
// to 404 and 409, and everything else becomes a 500 with fallback as message.
func WriteServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrToolAlreadyExists):
		WriteError(w, http.StatusConflict, "Tool already exists")
	default:
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// DecodeJSON decodes the request body into v, limited to maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.NewValidationError("Invalid request body"), fmt.Errorf("decode json: %w", err))
	}

	return nil
}

// QueryID parses the numeric record ID in query parameter key.
// A missing parameter yields a ValidationError with reason missing.
func QueryID(r *http.Request, key, missing string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, domain.NewValidationError(missing)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Join(domain.NewValidationError("Invalid "+key), err)
	}

	return id, nil
}
