package types

import "fmt"

// TargetKind identifies the transport a notification is forwarded to.
// Exactly one kind is active per DeliveryTarget; the kind is parsed once at
// the configuration boundary so per-message dispatch never re-validates it.
type TargetKind string

const (
	TargetSQS          TargetKind = "AWS_SQS"
	TargetEventBridge  TargetKind = "AWS_EVENTBRIDGE"
	TargetPubSub       TargetKind = "GCP_PUBSUB"
	TargetStorageQueue TargetKind = "AZURE_STORAGE_QUEUE"
	TargetServiceBus   TargetKind = "AZURE_SERVICE_BUS"
	TargetWebhook      TargetKind = "WEBHOOK"
)

// ParseTargetKind validates a destination kind selector. It is the single
// place an invalid selector is rejected; callers treat the error as a
// startup failure, never a per-message condition.
func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(s); k {
	case TargetSQS, TargetEventBridge, TargetPubSub, TargetStorageQueue, TargetServiceBus, TargetWebhook:
		return k, nil
	default:
		return "", fmt.Errorf("invalid destination kind %q (want one of %s, %s, %s, %s, %s, %s)",
			s, TargetSQS, TargetEventBridge, TargetPubSub, TargetStorageQueue, TargetServiceBus, TargetWebhook)
	}
}

// WebhookTarget holds the endpoint configuration for webhook delivery.
// AuthHeaderName/AuthHeaderValue are optional; when set, the header is
// attached to every POST.
type WebhookTarget struct {
	URL             string
	AuthHeaderName  string
	AuthHeaderValue SecretString
}

// DeliveryTarget is a resolved destination. Only the config fields matching
// Kind are populated; fields for other kinds are zero and ignored. A target
// is constructed once per invocation (from environment or subscriber
// configuration) and is immutable for the invocation's duration.
type DeliveryTarget struct {
	Kind TargetKind

	// TargetSQS
	QueueURL string
	// TargetEventBridge
	EventBusName string
	EventSource  string
	// TargetPubSub
	PubSubProjectID string
	PubSubTopicID   string
	// TargetStorageQueue
	StorageQueueURL string
	// TargetServiceBus
	ServiceBusQueue string
	// TargetWebhook
	Webhook WebhookTarget
}

// Validate checks that the config fields for the active kind are present.
func (t DeliveryTarget) Validate() error {
	switch t.Kind {
	case TargetSQS:
		if t.QueueURL == "" {
			return fmt.Errorf("delivery target: %s requires a queue URL", t.Kind)
		}
	case TargetEventBridge:
		if t.EventBusName == "" {
			return fmt.Errorf("delivery target: %s requires an event bus name", t.Kind)
		}
	case TargetPubSub:
		if t.PubSubProjectID == "" || t.PubSubTopicID == "" {
			return fmt.Errorf("delivery target: %s requires a project and topic id", t.Kind)
		}
	case TargetStorageQueue:
		if t.StorageQueueURL == "" {
			return fmt.Errorf("delivery target: %s requires a queue URL", t.Kind)
		}
	case TargetServiceBus:
		if t.ServiceBusQueue == "" {
			return fmt.Errorf("delivery target: %s requires a queue name", t.Kind)
		}
	case TargetWebhook:
		if t.Webhook.URL == "" {
			return fmt.Errorf("delivery target: %s requires a URL", t.Kind)
		}
	default:
		return fmt.Errorf("delivery target: unknown kind %q", t.Kind)
	}
	return nil
}
