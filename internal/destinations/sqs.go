package destinations

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"notifyrelay/internal/types"
)

// SQSAPI abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDestination publishes payloads to an SQS queue. The queue URL is
// per-call because subscriber targets may name different queues while
// sharing the one SDK client.
type SQSDestination struct {
	client SQSAPI
	logger types.Logger
}

// NewSQSDestination creates an SQS destination over the given client.
func NewSQSDestination(client SQSAPI, logger types.Logger) *SQSDestination {
	return &SQSDestination{client: client, logger: logger}
}

// Send performs a single SendMessage call. A 4xx rejection other than
// throttling means the subscriber-supplied queue URL is unusable and is
// permanent; throttling, 5xx, and network failures are transient.
func (d *SQSDestination) Send(ctx context.Context, queueURL string, payload []byte) error {
	_, err := d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return classifyAWSError("sqs.send", "SendMessage failed", err)
	}

	d.logger.Info("message forwarded to SQS",
		"queue_url", queueURL,
		"payload_size", len(payload),
	)
	return nil
}
