// Package types defines the shared domain model for the notification relay:
// the notification envelope wire format, delivery targets, subscribers, the
// error taxonomy, and the small interfaces (Logger, Clock) that inner
// components depend on.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType identifies the kind of inbound notification.
type NotificationType string

const (
	TypeOrderChange              NotificationType = "ORDER_CHANGE"
	TypeAnyOfferChanged          NotificationType = "ANY_OFFER_CHANGED"
	TypePricingHealth            NotificationType = "PRICING_HEALTH"
	TypeDataKioskQueryFinished   NotificationType = "DATA_KIOSK_QUERY_PROCESSING_FINISHED"
	TypeFeedProcessingFinished   NotificationType = "FEED_PROCESSING_FINISHED"
	TypeReportProcessingFinished NotificationType = "REPORT_PROCESSING_FINISHED"
)

// knownTypes is the closed set of notification types the relay understands.
// Envelopes carrying any other type are skipped, never forwarded blindly.
var knownTypes = map[NotificationType]struct{}{
	TypeOrderChange:              {},
	TypeAnyOfferChanged:          {},
	TypePricingHealth:            {},
	TypeDataKioskQueryFinished:   {},
	TypeFeedProcessingFinished:   {},
	TypeReportProcessingFinished: {},
}

// IsKnown reports whether t belongs to the closed set of recognized
// notification types.
func (t NotificationType) IsKnown() bool {
	_, ok := knownTypes[t]
	return ok
}

// NotificationMetadata carries the subscription-level metadata attached to
// every envelope by the upstream event source.
type NotificationMetadata struct {
	ApplicationID  string    `json:"applicationId"`
	SubscriptionID string    `json:"subscriptionId"`
	PublishTime    time.Time `json:"publishTime"`
	NotificationID string    `json:"notificationId"`
}

// NotificationEnvelope is the unit of work flowing through the relay. It is
// created by the upstream event source and treated as read-only through the
// pipeline: components wrap it into derived messages but never mutate it.
//
// Payload is kept as raw JSON because its shape is keyed by NotificationType;
// typed accessors (OrderChangePayload) decode it on demand.
type NotificationEnvelope struct {
	NotificationVersion string               `json:"notificationVersion"`
	NotificationType    NotificationType     `json:"notificationType"`
	PayloadVersion      string               `json:"payloadVersion"`
	EventTime           time.Time            `json:"eventTime"`
	Payload             json.RawMessage      `json:"payload"`
	Metadata            NotificationMetadata `json:"notificationMetadata"`
}

// OrderChangePayload is the payload shape for ORDER_CHANGE notifications.
// It is a thin pointer: only the order identifier and a status snapshot,
// which the enrichment workflow expands via the order lookup API.
type OrderChangePayload struct {
	AmazonOrderID string `json:"AmazonOrderId"`
	OrderStatus   string `json:"OrderStatus"`
}

// OrderChange decodes the envelope payload as an OrderChangePayload.
// Returns an error if the envelope is not an ORDER_CHANGE notification or
// the payload does not parse.
func (e *NotificationEnvelope) OrderChange() (*OrderChangePayload, error) {
	if e.NotificationType != TypeOrderChange {
		return nil, fmt.Errorf("envelope: payload is %s, not %s", e.NotificationType, TypeOrderChange)
	}
	var p OrderChangePayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("envelope: failed to decode ORDER_CHANGE payload: %w", err)
	}
	return &p, nil
}

// eventBridgeWrapper is the outer shape an envelope acquires after a trip
// through an event bus: the original envelope ends up under "detail".
// Dead-lettered bodies may arrive in either shape.
type eventBridgeWrapper struct {
	Version    string          `json:"version"`
	ID         string          `json:"id"`
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Detail     json.RawMessage `json:"detail"`
}

// ParseEnvelope decodes a raw message body into a NotificationEnvelope.
// It attempts the event-bus wrapper shape first (body with a non-empty
// "detail" object) and falls back to the bare envelope shape, so callers
// never probe generic maps.
//
// The second return is the canonical envelope body: the unwrapped "detail"
// bytes for wrapped messages, the input itself for bare ones. Forwarding
// the canonical body keeps a message that cycles through an event bus and
// the dead-letter queue from accumulating nested wrappers.
//
// A body that parses as JSON but carries an empty notificationType is a
// parse failure: such a message can never be classified.
func ParseEnvelope(body []byte) (*NotificationEnvelope, []byte, error) {
	// Wrapper shape first: forwarded event-bus artifacts carry the envelope
	// under "detail".
	var wrapper eventBridgeWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Detail) > 0 && wrapper.DetailType != "" {
		env, err := parseBareEnvelope(wrapper.Detail)
		if err != nil {
			return nil, nil, fmt.Errorf("envelope: wrapped detail did not parse: %w", err)
		}
		return env, wrapper.Detail, nil
	}

	env, err := parseBareEnvelope(body)
	if err != nil {
		return nil, nil, err
	}
	return env, body, nil
}

func parseBareEnvelope(body []byte) (*NotificationEnvelope, error) {
	var env NotificationEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("envelope: malformed JSON: %w", err)
	}
	if env.NotificationType == "" {
		return nil, fmt.Errorf("envelope: missing notificationType")
	}
	return &env, nil
}

// RawMessage is a transport-delivered message body plus its queue-assigned
// identifier, as handed to the batch relay entry point.
type RawMessage struct {
	MessageID string
	Body      string
	// SentTimestamp is the transport enqueue time in epoch milliseconds,
	// when the transport provides it. Used only for queue-lag telemetry.
	SentTimestamp string
}
