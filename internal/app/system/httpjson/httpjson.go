// internal/app/system/httpjson/httpjson.go
// Package httpjson holds the small JSON request/response helpers shared by
// the feature handlers.
package httpjson

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Respond writes v as a JSON response with the given status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// Error writes a JSON error envelope with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	Respond(w, status, errorBody{Error: msg})
}

// ServerError logs the underlying error and writes a generic 500 so
// internals never leak to clients.
func ServerError(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Error(msg, zap.Error(err))
	}
	Error(w, http.StatusInternalServerError, "internal error")
}

// Decode reads the request body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
