package types

import (
	"errors"
	"fmt"
)

// ErrorKind splits delivery failures into the two classes the relay cares
// about: transient failures are retried by redelivery (or the next
// dead-letter run), permanent failures are surfaced for operators and never
// retried automatically.
type ErrorKind string

const (
	ErrKindTransient ErrorKind = "transient"
	ErrKindPermanent ErrorKind = "permanent"
)

// DeliveryError is the typed error returned by the destination adapter, the
// order lookup client, the subscriber store, and the enrichment workflow.
// Inner components only classify; the batch handler and the dead-letter
// reprocessor are the layers that turn a DeliveryError into a retry/no-retry
// decision.
type DeliveryError struct {
	Kind   ErrorKind
	Op     string // e.g. "sqs.send", "orders.get", "subscribers.get"
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Reason, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Reason, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Transient constructs a retryable DeliveryError.
func Transient(op, reason string, err error) *DeliveryError {
	return &DeliveryError{Kind: ErrKindTransient, Op: op, Reason: reason, Err: err}
}

// Permanent constructs a non-retryable DeliveryError.
func Permanent(op, reason string, err error) *DeliveryError {
	return &DeliveryError{Kind: ErrKindPermanent, Op: op, Reason: reason, Err: err}
}

// IsTransient reports whether err is (or wraps) a transient DeliveryError.
// Errors without a DeliveryError in their chain are treated as transient:
// an unclassified failure must not be silently dropped, so the safe default
// is redelivery.
func IsTransient(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind == ErrKindTransient
	}
	return true
}

// IsPermanent reports whether err is (or wraps) a permanent DeliveryError.
func IsPermanent(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind == ErrKindPermanent
	}
	return false
}

// ErrSubscriberNotFound is returned by the subscriber store when no
// subscriber exists for a subscription id. "Not found" is an expected
// outcome of the keyed lookup; the enrichment workflow converts it into a
// permanent failure (the subscription is gone, retrying cannot fix it).
var ErrSubscriberNotFound = errors.New("subscriber not found")

// ErrOrderNotFound is returned by the order lookup client on a 404.
var ErrOrderNotFound = errors.New("order not found")
