package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidPayload     = errors.New("payload is missing required fields")
	ErrRateLimited        = errors.New("send window exhausted")
	ErrWebhookAuth        = errors.New("webhook verification token mismatch")
	ErrLockHeld           = errors.New("lock is held by another instance")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrTerminalState      = errors.New("job already reached a terminal state")
	ErrStaleTransition    = errors.New("stored status no longer matches the expected one")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// DeliveryClass splits delivery failures into the two outcomes the retry
// policy cares about.
type DeliveryClass int

const (
	// DeliveryTransient covers network errors, timeouts and provider 5xx.
	// The job is retried with backoff.
	DeliveryTransient DeliveryClass = iota
	// DeliveryPermanent covers malformed payloads and provider 4xx.
	// Retrying cannot succeed, the job is exhausted immediately.
	DeliveryPermanent
)

// DeliveryError wraps a provider send failure with its classification.
type DeliveryError struct {
	Class DeliveryClass
	Err   error
}

func (e *DeliveryError) Error() string {
	if e.Class == DeliveryPermanent {
		return fmt.Sprintf("permanent delivery error: %v", e.Err)
	}
	return fmt.Sprintf("transient delivery error: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func NewTransientDeliveryError(err error) *DeliveryError {
	return &DeliveryError{Class: DeliveryTransient, Err: err}
}

func NewPermanentDeliveryError(err error) *DeliveryError {
	return &DeliveryError{Class: DeliveryPermanent, Err: err}
}

// ClassifyHTTPStatus maps a provider HTTP status code to a delivery class.
// 4xx is not worth retrying; 5xx and anything unexpected retries.
func ClassifyHTTPStatus(code int, err error) *DeliveryError {
	if code >= 400 && code < 500 {
		return NewPermanentDeliveryError(err)
	}
	return NewTransientDeliveryError(err)
}

// IsPermanentDelivery reports whether err is a delivery error that must not
// be retried. Unclassified errors default to transient so that no job is
// dropped before exhausting its retries.
func IsPermanentDelivery(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Class == DeliveryPermanent
	}
	return false
}
