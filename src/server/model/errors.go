package models

import (
	"errors"
	"strings"
)

// Sentinel errors shared across models. Handlers map these onto HTTP
// statuses; ErrNotFound covers both missing rows and ownership misses so
// resource existence is never leaked to non-owners.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotDraft          = errors.New("release is not a draft")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrIdentityRequired  = errors.New("identity verification required")
)

// ValidationError carries one message per failed rule so handlers can
// return an errors[] payload
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// Validation builds a ValidationError from messages
func Validation(msgs ...string) *ValidationError {
	return &ValidationError{Errors: msgs}
}

// AsValidation unwraps a ValidationError if err is one
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
