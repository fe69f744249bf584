package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Error type identifiers surfaced to clients.
const (
	ErrUnsupportedPath   = "unsupported_path"
	ErrAdapter           = "adapter_error"
	ErrForwarding        = "forwarding_error"
	ErrVisionModel       = "vision_model_error"
	ErrThinkingModel     = "thinking_model_error"
	ErrRateLimitExceeded = "rate_limit_exceeded"
)

type errorBody struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type errorPayload struct {
	Error errorBody `json:"error"`
}

// writeError emits the structured JSON error object with its HTTP status.
func writeError(w http.ResponseWriter, log *logrus.Entry, errType, message string, status int) {
	log.WithFields(logrus.Fields{
		"error_type": errType,
		"status":     status,
	}).Error(message)

	payload := errorPayload{Error: errorBody{
		Type:       errType,
		Message:    message,
		StatusCode: status,
	}}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
