package relay

import (
	"context"
	"strconv"
	"time"

	"notifyrelay/internal/types"
)

// deadlineReserve is how much of the invocation deadline the handler keeps
// in hand. Once less than this remains, unprocessed messages are marked
// failed for redelivery instead of being started and killed mid-dispatch.
const deadlineReserve = 3 * time.Second

// Handler consumes a batch of inbound notifications and reports partial
// failures. Messages are processed independently: one malformed or slow
// message never blocks or fails its batch siblings.
type Handler struct {
	pipeline *Pipeline
	metrics  RelayMetrics
	clock    types.Clock
	logger   types.Logger
}

// NewHandler wires the batch handler.
func NewHandler(pipeline *Pipeline, metrics RelayMetrics, clock types.Clock, logger types.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
	}
}

// HandleBatch processes each message and returns the set of failed ids.
// Skips count as success: a skipped message must not be redelivered.
// If the invocation deadline comes too close, the unprocessed remainder is
// recorded failed rather than dropped.
func (h *Handler) HandleBatch(ctx context.Context, messages []types.RawMessage) types.BatchResult {
	start := h.clock.Now()
	result := types.BatchResult{TotalCount: len(messages)}

	if len(messages) > 0 {
		h.recordQueueLag(ctx, start, messages[0])
	}

	for i, msg := range messages {
		if h.outOfBudget(ctx) {
			for _, rest := range messages[i:] {
				result.RecordFailure(rest.MessageID)
			}
			h.logger.Warn("invocation deadline approaching, deferring remainder of batch",
				"deferred", len(messages)-i,
				"batch_size", len(messages),
			)
			break
		}

		outcome, kind, err := h.pipeline.ProcessBody(ctx, msg.MessageID, []byte(msg.Body))
		if err != nil {
			result.RecordFailure(msg.MessageID)
			h.metrics.RecordDelivery(ctx, kind, ResultFailure)
			h.logger.Error("message processing failed",
				"message_id", msg.MessageID,
				"transient", types.IsTransient(err),
				"error", err.Error(),
			)
			continue
		}

		result.RecordSuccess()
		if outcome == OutcomeSkipped {
			h.metrics.RecordDelivery(ctx, kind, ResultSkipped)
		} else {
			h.metrics.RecordDelivery(ctx, kind, ResultSuccess)
		}
	}

	h.metrics.RecordBatchLatency(ctx, h.clock.Now().Sub(start))
	h.logger.Info("batch processed",
		"total", result.TotalCount,
		"succeeded", result.SucceededCount,
		"failed", len(result.FailedIDs),
	)
	return result
}

// outOfBudget reports whether processing must stop: the context is already
// done, or its deadline is within the reserve.
func (h *Handler) outOfBudget(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < deadlineReserve
}

// recordQueueLag derives enqueue-to-processing delay from the first
// message's SentTimestamp (epoch milliseconds). Absent or unparsable
// timestamps are ignored.
func (h *Handler) recordQueueLag(ctx context.Context, now time.Time, msg types.RawMessage) {
	if msg.SentTimestamp == "" {
		return
	}
	millis, err := strconv.ParseInt(msg.SentTimestamp, 10, 64)
	if err != nil {
		return
	}
	lag := now.Sub(time.UnixMilli(millis))
	if lag < 0 {
		return
	}
	h.metrics.RecordQueueLag(ctx, lag)
}
