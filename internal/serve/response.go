// Package serve is a local stand-in for the review backend: it serves the
// prior-knowledge endpoints over the sqlite store in internal/db.
package serve

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the error wrapper used for failed requests.
// Error: {"ok": false, "error": {"code": "...", "message": "..."}}
type Envelope struct {
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload holds structured error information.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Standard error codes mapped to HTTP status codes.
const (
	ErrValidation   = "validation_error" // 400
	ErrNotFound     = "not_found"        // 404
	ErrUnauthorized = "unauthorized"     // 401
	ErrRateLimited  = "rate_limited"     // 429
	ErrInternal     = "internal"         // 500
)

// resultList is the backend's list shape: {"result": [...]}
type resultList[T any] struct {
	Result []T `json:"result"`
}

// WriteJSON writes data as a bare JSON body. The prior-knowledge endpoints are
// not enveloped; clients read {"result": [...]} directly.
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write response", "err", err)
	}
}

// WriteSuccess writes a JSON success envelope with the given data and status.
func WriteSuccess(w http.ResponseWriter, data interface{}, status int) {
	WriteJSON(w, Envelope{OK: true, Data: data}, status)
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, code, message string, status int) {
	WriteJSON(w, Envelope{
		OK: false,
		Error: &ErrorPayload{
			Code:    code,
			Message: message,
		},
	}, status)
}
