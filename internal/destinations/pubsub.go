package destinations

import (
	"context"
	"sync"

	"cloud.google.com/go/pubsub"

	"notifyrelay/internal/types"
)

// PubSubPublisher abstracts topic publishing for testability. The concrete
// implementation wraps *pubsub.Client and blocks on the publish result so
// that Send reflects whether the transport accepted the message.
type PubSubPublisher interface {
	Publish(ctx context.Context, topicID string, payload []byte) (serverID string, err error)
}

// GooglePublisher implements PubSubPublisher over a *pubsub.Client.
// Topic handles are cached: each pubsub.Topic owns a batching goroutine
// pool, so creating one per message would leak schedulers.
type GooglePublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewGooglePublisher creates a publisher over an existing Pub/Sub client.
func NewGooglePublisher(client *pubsub.Client) *GooglePublisher {
	return &GooglePublisher{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}
}

func (p *GooglePublisher) topic(topicID string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[topicID]; ok {
		return t
	}
	t := p.client.Topic(topicID)
	p.topics[topicID] = t
	return t
}

// Publish sends the payload and waits for the server-assigned message id.
func (p *GooglePublisher) Publish(ctx context.Context, topicID string, payload []byte) (string, error) {
	result := p.topic(topicID).Publish(ctx, &pubsub.Message{Data: payload})
	return result.Get(ctx)
}

// Close stops all cached topic schedulers, flushing pending publishes.
func (p *GooglePublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		t.Stop()
	}
}

// PubSubDestination publishes payloads to a GCP Pub/Sub topic.
type PubSubDestination struct {
	publisher PubSubPublisher
	logger    types.Logger
}

// NewPubSubDestination creates a Pub/Sub destination over the given
// publisher.
func NewPubSubDestination(publisher PubSubPublisher, logger types.Logger) *PubSubDestination {
	return &PubSubDestination{publisher: publisher, logger: logger}
}

// Send publishes one message and blocks until the service acknowledges it.
// A missing topic or rejected request is permanent; service unavailability
// is transient.
func (d *PubSubDestination) Send(ctx context.Context, topicID string, payload []byte) error {
	serverID, err := d.publisher.Publish(ctx, topicID, payload)
	if err != nil {
		return classifyPubSubError("pubsub.send", "publish failed", err)
	}

	d.logger.Info("message forwarded to Pub/Sub",
		"topic_id", topicID,
		"server_id", serverID,
		"payload_size", len(payload),
	)
	return nil
}
