package destinations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"notifyrelay/internal/types"
)

// detailTypeNotification is the DetailType stamped on every forwarded event.
// The dead-letter reprocessor relies on it to recognize wrapped bodies.
const detailTypeNotification = "NotificationRelay"

// EventBridgeAPI abstracts the EventBridge PutEvents operation for
// testability. Production code uses the *eventbridge.Client.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeDestination publishes payloads as events on an event bus.
type EventBridgeDestination struct {
	client EventBridgeAPI
	logger types.Logger
}

// NewEventBridgeDestination creates an EventBridge destination over the
// given client.
func NewEventBridgeDestination(client EventBridgeAPI, logger types.Logger) *EventBridgeDestination {
	return &EventBridgeDestination{client: client, logger: logger}
}

// Send publishes one event with the payload as Detail. PutEvents can accept
// the request yet fail individual entries, so the per-entry error code is
// checked as well.
func (d *EventBridgeDestination) Send(ctx context.Context, busName, source string, payload []byte) error {
	out, err := d.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(busName),
				Source:       aws.String(source),
				DetailType:   aws.String(detailTypeNotification),
				Detail:       aws.String(string(payload)),
			},
		},
	})
	if err != nil {
		return classifyAWSError("eventbridge.send", "PutEvents failed", err)
	}

	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		code := aws.ToString(entry.ErrorCode)
		entryErr := fmt.Errorf("eventbridge entry error %s: %s", code, aws.ToString(entry.ErrorMessage))
		// Per-entry rejections carry a code, not a status. Throttling and
		// service-side faults recover on redelivery; anything else means the
		// entry itself is unacceptable.
		if _, throttle := awsThrottleCodes[code]; throttle || code == "InternalFailure" {
			return types.Transient("eventbridge.send",
				fmt.Sprintf("entry rejected: %s", code), entryErr)
		}
		return types.Permanent("eventbridge.send",
			fmt.Sprintf("entry rejected: %s", code), entryErr)
	}

	d.logger.Info("message forwarded to EventBridge",
		"event_bus", busName,
		"source", source,
		"payload_size", len(payload),
	)
	return nil
}
