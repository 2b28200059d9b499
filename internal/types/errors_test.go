package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestDeliveryError_Classification(t *testing.T) {
	transient := Transient("sqs.send", "throttled", errors.New("429"))
	permanent := Permanent("subscribers.get", "subscription gone", ErrSubscriberNotFound)

	if !IsTransient(transient) {
		t.Error("transient error not classified transient")
	}
	if IsPermanent(transient) {
		t.Error("transient error classified permanent")
	}
	if !IsPermanent(permanent) {
		t.Error("permanent error not classified permanent")
	}
	if IsTransient(permanent) {
		t.Error("permanent error classified transient")
	}
}

func TestDeliveryError_WrappedClassification(t *testing.T) {
	inner := Permanent("orders.get", "order not found", ErrOrderNotFound)
	wrapped := fmt.Errorf("workflow step FetchOrder: %w", inner)

	if !IsPermanent(wrapped) {
		t.Error("permanent kind lost through wrapping")
	}
	if !errors.Is(wrapped, ErrOrderNotFound) {
		t.Error("sentinel lost through DeliveryError chain")
	}
}

func TestIsTransient_UnclassifiedDefaultsToRetry(t *testing.T) {
	// Unclassified failures must not be dropped; the safe default is redelivery.
	if !IsTransient(errors.New("something unexpected")) {
		t.Error("unclassified error should default to transient")
	}
}

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString("Atzr|refresh-token")

	if got := fmt.Sprintf("%v", s); got != "***REDACTED***" {
		t.Errorf("fmt leaked secret: %q", got)
	}
	j, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}
	if string(j) != `"***REDACTED***"` {
		t.Errorf("JSON leaked secret: %s", j)
	}
	if s.Unmask() != "Atzr|refresh-token" {
		t.Error("Unmask did not return plaintext")
	}
}
