package chathub

import (
	"errors"
	"fmt"
)

// The closed error taxonomy for coordination operations. Every rejected
// action maps to exactly one of these, and each carries a stable wire code.
var (
	// ErrUnauthorized: the caller is neither a participant nor privileged.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound: unknown identity or conversation.
	ErrNotFound = errors.New("not found")
	// ErrNoResponderAvailable: the online-responder pool is empty. This is
	// a routine outcome, never logged as an error.
	ErrNoResponderAvailable = errors.New("no responder available")
	// ErrConversationClosed: a write was attempted on an ended conversation.
	ErrConversationClosed = errors.New("conversation closed")
	// ErrValidationFailed: empty or oversized content, or an invalid
	// assignment target.
	ErrValidationFailed = errors.New("validation failed")
	// ErrTransientStore: a persistence call failed after bounded retries.
	ErrTransientStore = errors.New("transient store error")
)

// CodeOf returns the stable wire code for a taxonomy error.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoResponderAvailable):
		return "no_responder_available"
	case errors.Is(err, ErrConversationClosed):
		return "conversation_closed"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrTransientStore):
		return "transient_store_error"
	default:
		return "internal_error"
	}
}

// storeErr wraps a persistence failure into the taxonomy while keeping the
// cause visible in logs.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrTransientStore, err)
}
