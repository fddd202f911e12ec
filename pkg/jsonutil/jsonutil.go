// Package jsonutil writes JSON API responses.
package jsonutil

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

// JSON encodes v before touching the response, so an encode failure becomes a
// 500 instead of a truncated body. Failures are logged on the global zap logger.
func JSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("failed to encode response", zap.Int("status", code), zap.Error(err))
		code = http.StatusInternalServerError
		b = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(b, '\n')); err != nil {
		zap.L().Debug("failed to write response", zap.Error(err))
	}
}

// Error writes an ErrorBody with msg.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, ErrorBody{Error: msg})
}
