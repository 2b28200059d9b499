// Package destinations implements the uniform send operation over the
// heterogeneous transports a notification can be forwarded to: SQS,
// EventBridge, GCP Pub/Sub, Azure Storage Queue, Azure Service Bus, and
// HTTP webhooks.
//
// The adapter performs exactly one outbound call per Send invocation and
// holds no retry logic: retry policy belongs to the callers (batch relay
// handler and dead-letter reprocessor), whose semantics differ between
// first-pass delivery and reprocessing. Success means the transport
// accepted the message, not that a downstream consumer handled it.
//
// Transport clients are constructed once at cold start and pooled across
// messages within an invocation; they are never shared across invocations
// with stale credentials.
package destinations

import (
	"context"

	"notifyrelay/internal/types"
)

// Dispatcher routes a payload to the transport selected by the target's
// kind. Each kind-specific sender is optional: a Dispatcher wired without a
// sender for some kind reports a permanent error when a target of that kind
// shows up, since re-sending cannot conjure a client.
type Dispatcher struct {
	sqs        *SQSDestination
	eventBus   *EventBridgeDestination
	pubsub     *PubSubDestination
	storage    *StorageQueueDestination
	serviceBus *ServiceBusDestination
	webhook    *WebhookDestination
	logger     types.Logger
}

// DispatcherOption wires an optional kind-specific sender into a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSQS wires the SQS destination.
func WithSQS(d *SQSDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.sqs = d }
}

// WithEventBridge wires the EventBridge destination.
func WithEventBridge(d *EventBridgeDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.eventBus = d }
}

// WithPubSub wires the GCP Pub/Sub destination.
func WithPubSub(d *PubSubDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.pubsub = d }
}

// WithStorageQueue wires the Azure Storage Queue destination.
func WithStorageQueue(d *StorageQueueDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.storage = d }
}

// WithServiceBus wires the Azure Service Bus destination.
func WithServiceBus(d *ServiceBusDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.serviceBus = d }
}

// WithWebhook wires the webhook destination.
func WithWebhook(d *WebhookDestination) DispatcherOption {
	return func(dp *Dispatcher) { dp.webhook = d }
}

// NewDispatcher creates a Dispatcher with the given senders.
func NewDispatcher(logger types.Logger, opts ...DispatcherOption) *Dispatcher {
	dp := &Dispatcher{logger: logger}
	for _, opt := range opts {
		opt(dp)
	}
	return dp
}

// Send serializes the payload as the message body and performs a single
// synchronous publish to the target's endpoint. The target kind was parsed
// at the configuration boundary, so the switch is exhaustive over valid
// kinds; an unknown kind can only mean a construction bug and is permanent.
func (dp *Dispatcher) Send(ctx context.Context, target types.DeliveryTarget, payload []byte) error {
	switch target.Kind {
	case types.TargetSQS:
		if dp.sqs == nil {
			return types.Permanent("dispatch", "SQS destination not configured", nil)
		}
		return dp.sqs.Send(ctx, target.QueueURL, payload)

	case types.TargetEventBridge:
		if dp.eventBus == nil {
			return types.Permanent("dispatch", "EventBridge destination not configured", nil)
		}
		return dp.eventBus.Send(ctx, target.EventBusName, target.EventSource, payload)

	case types.TargetPubSub:
		if dp.pubsub == nil {
			return types.Permanent("dispatch", "Pub/Sub destination not configured", nil)
		}
		return dp.pubsub.Send(ctx, target.PubSubTopicID, payload)

	case types.TargetStorageQueue:
		if dp.storage == nil {
			return types.Permanent("dispatch", "Storage Queue destination not configured", nil)
		}
		return dp.storage.Send(ctx, target.StorageQueueURL, payload)

	case types.TargetServiceBus:
		if dp.serviceBus == nil {
			return types.Permanent("dispatch", "Service Bus destination not configured", nil)
		}
		return dp.serviceBus.Send(ctx, target.ServiceBusQueue, payload)

	case types.TargetWebhook:
		if dp.webhook == nil {
			return types.Permanent("dispatch", "webhook destination not configured", nil)
		}
		return dp.webhook.Send(ctx, target.Webhook, payload)

	default:
		return types.Permanent("dispatch", "unknown target kind "+string(target.Kind), nil)
	}
}
