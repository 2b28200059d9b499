// Package dlq drains the dead-letter queue through the same
// classify->enrich->dispatch pipeline as first-pass delivery. Messages are
// deleted only after confirmed dispatch, so a crash mid-run loses no data;
// the worst case is a duplicate delivery, which destinations tolerate.
package dlq

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"notifyrelay/internal/relay"
	"notifyrelay/internal/types"
)

// SQSAPI is the queue surface the reprocessor needs: bounded receive and
// per-message delete. Satisfied by *sqs.Client.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Processor re-applies the relay pipeline to one stored body. Satisfied by
// *relay.Pipeline; dead-lettered bodies may be event-bus detail wrappers,
// which the pipeline's envelope parser unwraps.
type Processor interface {
	ProcessBody(ctx context.Context, messageID string, body []byte) (relay.Outcome, types.TargetKind, error)
}

// Config bounds one drain run.
type Config struct {
	QueueURL  string
	BatchSize int32
	// WaitTime is the SQS long-poll wait per receive. Short by design: an
	// empty receive is the loop's termination condition.
	WaitTime time.Duration
	// MaxDrain is the wall-clock budget for a whole run. The loop exits
	// cleanly between messages when it is exceeded.
	MaxDrain time.Duration
}

// Reprocessor drains the dead-letter queue in bounded batches.
type Reprocessor struct {
	client  SQSAPI
	cfg     Config
	process Processor
	clock   types.Clock
	logger  types.Logger
}

// NewReprocessor wires a reprocessor over the given queue and pipeline.
func NewReprocessor(client SQSAPI, cfg Config, process Processor, clock types.Clock, logger types.Logger) *Reprocessor {
	return &Reprocessor{
		client:  client,
		cfg:     cfg,
		process: process,
		clock:   clock,
		logger:  logger,
	}
}

// ReprocessAll drains the queue until a receive comes back empty, the
// MaxDrain budget runs out, or the context is canceled. Each message is
// deleted only after its dispatch succeeded (skip included: a skipped
// message is done and must not linger). Failed messages are left in place
// for a future run.
func (r *Reprocessor) ReprocessAll(ctx context.Context) (types.ReprocessSummary, error) {
	runID := uuid.NewString()
	start := r.clock.Now()
	log := r.logger.With("run_id", runID, "queue_url", r.cfg.QueueURL)
	log.Info("dead-letter drain started",
		"batch_size", r.cfg.BatchSize,
		"max_drain", r.cfg.MaxDrain.String(),
	)

	var summary types.ReprocessSummary

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if r.clock.Now().Sub(start) >= r.cfg.MaxDrain {
			log.Warn("drain budget exhausted, exiting between batches",
				"success_count", summary.SuccessCount,
				"failure_count", summary.FailureCount,
			)
			return summary, nil
		}

		out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(r.cfg.QueueURL),
			MaxNumberOfMessages: r.cfg.BatchSize,
			WaitTimeSeconds:     int32(r.cfg.WaitTime.Seconds()),
		})
		if err != nil {
			return summary, types.Transient("dlq.receive", "ReceiveMessage failed", err)
		}
		if len(out.Messages) == 0 {
			// Sole termination condition: the store reports no messages.
			break
		}

		if !r.drainBatch(ctx, log, start, out.Messages, &summary) {
			return summary, nil
		}
	}

	log.Info("dead-letter drain finished",
		"success_count", summary.SuccessCount,
		"failure_count", summary.FailureCount,
		"elapsed", r.clock.Now().Sub(start).String(),
	)
	return summary, nil
}

// drainBatch processes one received batch. Returns false when the drain
// budget ran out mid-batch; unprocessed messages stay queued.
func (r *Reprocessor) drainBatch(ctx context.Context, log types.Logger, start time.Time, messages []sqstypes.Message, summary *types.ReprocessSummary) bool {
	for _, msg := range messages {
		if r.clock.Now().Sub(start) >= r.cfg.MaxDrain {
			log.Warn("drain budget exhausted, exiting between messages",
				"success_count", summary.SuccessCount,
				"failure_count", summary.FailureCount,
			)
			return false
		}

		messageID := aws.ToString(msg.MessageId)
		_, _, err := r.process.ProcessBody(ctx, messageID, []byte(aws.ToString(msg.Body)))
		if err != nil {
			// Leave the message in place so a future run can retry it.
			summary.FailureCount++
			log.Error("reprocessing failed, message retained",
				"message_id", messageID,
				"transient", types.IsTransient(err),
				"error", err.Error(),
			)
			continue
		}

		if err := r.deleteMessage(ctx, msg); err != nil {
			// The dispatch succeeded but the delete did not: the message
			// will be redelivered. At-least-once makes that acceptable.
			summary.FailureCount++
			log.Warn("delete after successful dispatch failed, duplicate delivery possible",
				"message_id", messageID,
				"error", err.Error(),
			)
			continue
		}
		summary.SuccessCount++
	}
	return true
}

func (r *Reprocessor) deleteMessage(ctx context.Context, msg sqstypes.Message) error {
	_, err := r.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(r.cfg.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	return err
}
