package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verte-zerg/gapdash/internal/binding"
)

// Error codes sent in the JSON error envelope.
const (
	CodeBadRequest   = "bad_request"
	CodeUnknownInput = "unknown_input"
	CodeMissingInput = "missing_input"
	CodeBadSession   = "invalid_session"
	CodeInternal     = "internal_error"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorFor maps a dispatch error onto a status and code.
func errorFor(err error) (int, string) {
	switch {
	case errors.Is(err, binding.ErrUnknownInput):
		return http.StatusBadRequest, CodeUnknownInput
	case errors.Is(err, binding.ErrMissingInput):
		return http.StatusBadRequest, CodeMissingInput
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
