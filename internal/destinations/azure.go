package destinations

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"notifyrelay/internal/types"
)

// StorageQueueEnqueuer abstracts the Azure Storage Queue enqueue operation
// for testability. Production code uses *azqueue.QueueClient.
type StorageQueueEnqueuer interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// StorageQueueClientFactory resolves a queue URL to an enqueue client.
// Clients are cached per queue URL so an invocation reuses connections
// across messages.
type StorageQueueClientFactory func(queueURL string) (StorageQueueEnqueuer, error)

// DefaultStorageQueueFactory builds azqueue clients for SAS-style queue
// URLs and memoizes them.
func DefaultStorageQueueFactory() StorageQueueClientFactory {
	var mu sync.Mutex
	clients := make(map[string]StorageQueueEnqueuer)

	return func(queueURL string) (StorageQueueEnqueuer, error) {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[queueURL]; ok {
			return c, nil
		}
		c, err := azqueue.NewQueueClientWithNoCredential(queueURL, nil)
		if err != nil {
			return nil, err
		}
		clients[queueURL] = c
		return c, nil
	}
}

// StorageQueueDestination publishes payloads to an Azure Storage Queue.
type StorageQueueDestination struct {
	factory StorageQueueClientFactory
	logger  types.Logger
}

// NewStorageQueueDestination creates a Storage Queue destination over the
// given client factory.
func NewStorageQueueDestination(factory StorageQueueClientFactory, logger types.Logger) *StorageQueueDestination {
	return &StorageQueueDestination{factory: factory, logger: logger}
}

// Send enqueues one message. Storage Queue bodies are conventionally
// base64-encoded so arbitrary JSON survives the XML transport.
// A factory failure means the queue URL itself is unusable and is
// permanent; enqueue rejections are classified by their HTTP status.
func (d *StorageQueueDestination) Send(ctx context.Context, queueURL string, payload []byte) error {
	client, err := d.factory(queueURL)
	if err != nil {
		return types.Permanent("storagequeue.send", "unusable queue URL", err)
	}

	content := base64.StdEncoding.EncodeToString(payload)
	if _, err := client.EnqueueMessage(ctx, content, nil); err != nil {
		return classifyAzureError("storagequeue.send", "EnqueueMessage failed", err)
	}

	d.logger.Info("message forwarded to Azure Storage Queue",
		"queue_url", queueURL,
		"payload_size", len(payload),
	)
	return nil
}

// ServiceBusSender abstracts the Service Bus send operation for
// testability. Production code uses *azservicebus.Sender.
type ServiceBusSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
}

// ServiceBusSenderFactory resolves a queue name to a sender. Senders are
// expected to be cached by the factory; AMQP links are expensive.
type ServiceBusSenderFactory func(queueName string) (ServiceBusSender, error)

// NewServiceBusSenderFactory builds senders from an *azservicebus.Client
// and memoizes them per queue name.
func NewServiceBusSenderFactory(client *azservicebus.Client) ServiceBusSenderFactory {
	var mu sync.Mutex
	senders := make(map[string]ServiceBusSender)

	return func(queueName string) (ServiceBusSender, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := senders[queueName]; ok {
			return s, nil
		}
		s, err := client.NewSender(queueName, nil)
		if err != nil {
			return nil, err
		}
		senders[queueName] = s
		return s, nil
	}
}

// ServiceBusDestination publishes payloads to an Azure Service Bus queue.
type ServiceBusDestination struct {
	factory ServiceBusSenderFactory
	logger  types.Logger
}

// NewServiceBusDestination creates a Service Bus destination over the given
// sender factory.
func NewServiceBusDestination(factory ServiceBusSenderFactory, logger types.Logger) *ServiceBusDestination {
	return &ServiceBusDestination{factory: factory, logger: logger}
}

// Send publishes one message to the named queue.
func (d *ServiceBusDestination) Send(ctx context.Context, queueName string, payload []byte) error {
	sender, err := d.factory(queueName)
	if err != nil {
		return types.Permanent("servicebus.send", "unusable queue name", err)
	}

	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        payload,
		ContentType: &contentType,
	}
	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		return classifyServiceBusError("servicebus.send", "SendMessage failed", err)
	}

	d.logger.Info("message forwarded to Azure Service Bus",
		"queue_name", queueName,
		"payload_size", len(payload),
	)
	return nil
}
