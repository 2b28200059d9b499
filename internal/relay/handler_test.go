package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"notifyrelay/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type fakeDispatcher struct {
	err      error
	targets  []types.DeliveryTarget
	payloads [][]byte
}

func (f *fakeDispatcher) Send(_ context.Context, target types.DeliveryTarget, payload []byte) error {
	f.targets = append(f.targets, target)
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeWorkflow struct {
	kind types.TargetKind
	err  error
	runs []*types.NotificationEnvelope
}

func (f *fakeWorkflow) Run(_ context.Context, env *types.NotificationEnvelope) (types.TargetKind, error) {
	f.runs = append(f.runs, env)
	return f.kind, f.err
}

type recordingMetrics struct {
	deliveries []MetricResult
	kinds      []types.TargetKind
	lags       []time.Duration
	latencies  []time.Duration
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, kind types.TargetKind, result MetricResult) {
	m.deliveries = append(m.deliveries, result)
	m.kinds = append(m.kinds, kind)
}

func (m *recordingMetrics) RecordBatchLatency(_ context.Context, d time.Duration) {
	m.latencies = append(m.latencies, d)
}

func (m *recordingMetrics) RecordQueueLag(_ context.Context, lag time.Duration) {
	m.lags = append(m.lags, lag)
}

type memoryArchive struct {
	entries []AuditEntry
}

func (m *memoryArchive) Record(entry AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryArchive) Close() error { return nil }

func defaultTestTarget() types.DeliveryTarget {
	return types.DeliveryTarget{
		Kind:     types.TargetSQS,
		QueueURL: "https://sqs.us-east-1.amazonaws.com/123/dest",
	}
}

func forwardableBody(notificationID string) string {
	body, _ := json.Marshal(map[string]any{
		"notificationType": "ANY_OFFER_CHANGED",
		"payload":          map[string]any{},
		"notificationMetadata": map[string]any{
			"notificationId": notificationID,
			"subscriptionId": "sub-001",
		},
	})
	return string(body)
}

func enrichableBody(orderID string) string {
	body, _ := json.Marshal(map[string]any{
		"notificationType": "ORDER_CHANGE",
		"payload": map[string]any{
			"AmazonOrderId": orderID,
			"OrderStatus":   "Shipped",
		},
		"notificationMetadata": map[string]any{
			"notificationId": "n-" + orderID,
			"subscriptionId": "sub-001",
		},
	})
	return string(body)
}

func newTestHandler(dispatcher *fakeDispatcher, workflow *fakeWorkflow, metrics *recordingMetrics, archive *memoryArchive) *Handler {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pipeline := NewPipeline(dispatcher, workflow, defaultTestTarget(), archive, clock, nopLogger{})
	return NewHandler(pipeline, metrics, clock, nopLogger{})
}

func TestHandleBatch_MalformedMessageDoesNotFailSiblings(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler := newTestHandler(dispatcher, &fakeWorkflow{}, &recordingMetrics{}, &memoryArchive{})

	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: forwardableBody("n-1")},
		{MessageID: "m-2", Body: "this is not json"},
		{MessageID: "m-3", Body: forwardableBody("n-3")},
	})

	if result.TotalCount != 3 {
		t.Errorf("total = %d, want 3", result.TotalCount)
	}
	if result.SucceededCount != 2 {
		t.Errorf("succeeded = %d, want 2", result.SucceededCount)
	}
	if !result.HasFailed("m-2") {
		t.Error("malformed message should be recorded failed")
	}
	if result.HasFailed("m-1") || result.HasFailed("m-3") {
		t.Error("siblings of a malformed message must not fail")
	}
	if len(dispatcher.payloads) != 2 {
		t.Errorf("expected 2 forwarded payloads, got %d", len(dispatcher.payloads))
	}
}

func TestHandleBatch_SkipCountsAsSuccess(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	metrics := &recordingMetrics{}
	handler := newTestHandler(dispatcher, &fakeWorkflow{}, metrics, &memoryArchive{})

	// Unknown type: classifier skips.
	body, _ := json.Marshal(map[string]any{
		"notificationType": "BRANDED_ITEM_CONTENT_CHANGE",
		"payload":          map[string]any{},
	})
	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: string(body)},
	})

	if result.SucceededCount != 1 || len(result.FailedIDs) != 0 {
		t.Errorf("skip must be success, got %+v", result)
	}
	if len(dispatcher.payloads) != 0 {
		t.Error("skipped message must not be dispatched")
	}
	if len(metrics.deliveries) != 1 || metrics.deliveries[0] != ResultSkipped {
		t.Errorf("expected one skipped metric, got %v", metrics.deliveries)
	}
}

func TestHandleBatch_ForwardSendsRawBody(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler := newTestHandler(dispatcher, &fakeWorkflow{}, &recordingMetrics{}, &memoryArchive{})

	body := forwardableBody("n-1")
	handler.HandleBatch(context.Background(), []types.RawMessage{{MessageID: "m-1", Body: body}})

	if len(dispatcher.payloads) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.payloads))
	}
	if string(dispatcher.payloads[0]) != body {
		t.Error("forward-as-is must send the raw body unmodified")
	}
	if dispatcher.targets[0].Kind != types.TargetSQS {
		t.Errorf("forwarded to %s, want default target", dispatcher.targets[0].Kind)
	}
}

func TestHandleBatch_EnrichmentPathRunsWorkflow(t *testing.T) {
	workflow := &fakeWorkflow{kind: types.TargetSQS}
	handler := newTestHandler(&fakeDispatcher{}, workflow, &recordingMetrics{}, &memoryArchive{})

	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: enrichableBody("902-1")},
	})

	if len(workflow.runs) != 1 {
		t.Fatalf("expected 1 workflow run, got %d", len(workflow.runs))
	}
	if result.SucceededCount != 1 {
		t.Errorf("succeeded = %d, want 1", result.SucceededCount)
	}
}

func TestHandleBatch_ForwardUnwrapsEventBusBody(t *testing.T) {
	// A dead-lettered body that already carries the event-bus wrapper must
	// be re-dispatched as the bare envelope, or wrappers nest on each cycle.
	dispatcher := &fakeDispatcher{}
	handler := newTestHandler(dispatcher, &fakeWorkflow{}, &recordingMetrics{}, &memoryArchive{})

	inner := forwardableBody("n-1")
	wrapped, _ := json.Marshal(map[string]any{
		"version":     "0",
		"id":          "eb-1",
		"detail-type": "NotificationRelay",
		"source":      "notifyrelay",
		"detail":      json.RawMessage(inner),
	})

	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: string(wrapped)},
	})

	if result.SucceededCount != 1 {
		t.Fatalf("succeeded = %d, want 1", result.SucceededCount)
	}
	if len(dispatcher.payloads) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.payloads))
	}
	if string(dispatcher.payloads[0]) != inner {
		t.Errorf("dispatched payload must be the bare envelope, got %s", dispatcher.payloads[0])
	}
}

func TestHandleBatch_EnrichedMetricUsesSubscriberKind(t *testing.T) {
	// The default target is SQS; the subscriber delivers over webhook. The
	// delivery metric must carry the kind the message actually went to.
	workflow := &fakeWorkflow{kind: types.TargetWebhook}
	metrics := &recordingMetrics{}
	handler := newTestHandler(&fakeDispatcher{}, workflow, metrics, &memoryArchive{})

	handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: enrichableBody("902-1")},
	})

	if len(metrics.kinds) != 1 {
		t.Fatalf("expected 1 delivery metric, got %d", len(metrics.kinds))
	}
	if metrics.kinds[0] != types.TargetWebhook {
		t.Errorf("metric kind = %s, want %s", metrics.kinds[0], types.TargetWebhook)
	}
}

func TestHandleBatch_TransientWorkflowFailureRecordsFailed(t *testing.T) {
	workflow := &fakeWorkflow{err: types.Transient("orders.get", "upstream returned 503", nil)}
	archive := &memoryArchive{}
	handler := newTestHandler(&fakeDispatcher{}, workflow, &recordingMetrics{}, archive)

	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: enrichableBody("902-1")},
	})

	if !result.HasFailed("m-1") {
		t.Error("transient failure must record the message failed for redelivery")
	}
	if len(archive.entries) != 0 {
		t.Error("transient failures are not archived; redelivery will retry them")
	}
}

func TestHandleBatch_PermanentFailureIsArchived(t *testing.T) {
	workflow := &fakeWorkflow{err: types.Permanent("enrich.resolveCredentials", "no subscriber for subscription sub-001", types.ErrSubscriberNotFound)}
	archive := &memoryArchive{}
	handler := newTestHandler(&fakeDispatcher{}, workflow, &recordingMetrics{}, archive)

	result := handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: enrichableBody("902-1")},
	})

	if !result.HasFailed("m-1") {
		t.Error("permanent failure is still recorded failed")
	}
	if len(archive.entries) != 1 {
		t.Fatalf("expected 1 archive entry, got %d", len(archive.entries))
	}
	entry := archive.entries[0]
	if entry.Outcome != AuditPermanentFailure {
		t.Errorf("outcome = %s, want %s", entry.Outcome, AuditPermanentFailure)
	}
	if entry.NotificationType != string(types.TypeOrderChange) {
		t.Errorf("notification type = %s", entry.NotificationType)
	}
}

func TestHandleBatch_DeadlineDefersRemainder(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handler := newTestHandler(dispatcher, &fakeWorkflow{}, &recordingMetrics{}, &memoryArchive{})

	// Deadline inside the reserve: nothing may start.
	ctx, cancel := context.WithTimeout(context.Background(), deadlineReserve/2)
	defer cancel()

	result := handler.HandleBatch(ctx, []types.RawMessage{
		{MessageID: "m-1", Body: forwardableBody("n-1")},
		{MessageID: "m-2", Body: forwardableBody("n-2")},
	})

	if len(result.FailedIDs) != 2 {
		t.Fatalf("expected all messages deferred as failed, got %v", result.FailedIDs)
	}
	if len(dispatcher.payloads) != 0 {
		t.Error("no dispatch may start inside the deadline reserve")
	}
}

func TestHandleBatch_QueueLagFromSentTimestamp(t *testing.T) {
	metrics := &recordingMetrics{}
	handler := newTestHandler(&fakeDispatcher{}, &fakeWorkflow{}, metrics, &memoryArchive{})

	sent := time.Date(2026, 3, 1, 11, 59, 30, 0, time.UTC)
	handler.HandleBatch(context.Background(), []types.RawMessage{
		{MessageID: "m-1", Body: forwardableBody("n-1"), SentTimestamp: fmt.Sprintf("%d", sent.UnixMilli())},
	})

	if len(metrics.lags) != 1 {
		t.Fatalf("expected 1 queue lag sample, got %d", len(metrics.lags))
	}
	if metrics.lags[0] != 30*time.Second {
		t.Errorf("lag = %s, want 30s", metrics.lags[0])
	}
}

func TestHandleBatch_EmptyBatch(t *testing.T) {
	handler := newTestHandler(&fakeDispatcher{}, &fakeWorkflow{}, &recordingMetrics{}, &memoryArchive{})
	result := handler.HandleBatch(context.Background(), nil)
	if result.TotalCount != 0 || result.SucceededCount != 0 || len(result.FailedIDs) != 0 {
		t.Errorf("empty batch should be a no-op, got %+v", result)
	}
}
