package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-auth-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthEnvelope wraps login responses.
type AuthEnvelope struct {
	Bearer  string              `json:"Bearer,omitempty"`
	Account *domain.SafeAccount `json:"account,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// AccountEnvelope wraps responses that carry a single account.
type AccountEnvelope struct {
	Account *domain.SafeAccount `json:"account,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ResendEnvelope wraps resend-verification responses.
type ResendEnvelope struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// ValidationEnvelope wraps rejected input with a per-field breakdown.
type ValidationEnvelope struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RateLimitEnvelope wraps cooldown refusals.
type RateLimitEnvelope struct {
	Error       string `json:"error"`
	WaitSeconds int    `json:"wait_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
