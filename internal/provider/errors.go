package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProviders indicates no provider was attempted for a call.
	ErrNoProviders = errors.New("no providers available")

	// ErrChainExhausted indicates every attempted provider failed.
	ErrChainExhausted = errors.New("provider chain exhausted")

	// ErrTimeout indicates a provider exceeded its call deadline.
	ErrTimeout = errors.New("provider call timed out")

	// ErrUnknownProvider indicates the id is not registered.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrDuplicateProvider indicates the id is already registered for the kind.
	ErrDuplicateProvider = errors.New("provider already registered")

	// ErrInvalidProviderID indicates the id failed validation.
	ErrInvalidProviderID = errors.New("invalid provider id")
)

// ChainError is returned when every attempted provider failed.
// It matches both ErrChainExhausted and the last provider error.
type ChainError struct {
	Kind     Kind
	Attempts int
	Last     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: %d provider(s) failed: %v", e.Kind, e.Attempts, e.Last)
}

func (e *ChainError) Unwrap() []error {
	return []error{ErrChainExhausted, e.Last}
}

// ValidationError rejects a request before any provider runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}
