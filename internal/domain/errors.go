package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details.
var (
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrBadRequest            = errors.New("bad request")
	ErrValidation            = errors.New("validation failed")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrCodeExpired           = errors.New("verification code expired")
	ErrTokenInvalidOrExpired = errors.New("invalid or expired reset token")
	ErrRateLimited           = errors.New("rate limited")
	ErrTooManyAttempts       = errors.New("too many attempts")
	ErrNotVerified           = errors.New("email not verified")
	ErrAlreadyVerified       = errors.New("email already verified")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrNoOp                  = errors.New("no change")
	ErrDelivery              = errors.New("notification delivery failed")
)

// ValidationError carries a per-field error map. errors.Is(err, ErrValidation)
// holds for any ValidationError.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// RateLimitError reports how long the caller must wait, in whole seconds
// (rounded up). errors.Is(err, ErrRateLimited) holds for any RateLimitError.
type RateLimitError struct {
	WaitSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry in %d seconds", e.WaitSeconds)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
