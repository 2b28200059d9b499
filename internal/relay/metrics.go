package relay

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"notifyrelay/internal/types"
)

// MetricResult is the Result dimension value on delivery metrics.
type MetricResult string

const (
	ResultSuccess MetricResult = "success"
	ResultFailure MetricResult = "failure"
	ResultSkipped MetricResult = "skipped"
)

// Metric names and dimension keys. All relay components use these constants.
const (
	metricDeliveryOutcome = "DeliveryOutcome"
	metricBatchLatency    = "BatchLatency"
	metricQueueLag        = "QueueLag"

	dimDestinationKind = "DestinationKind"
	dimResult          = "Result"
)

// RelayMetrics is the telemetry surface the handler and reprocessor emit to.
// Implementations must never fail the caller: telemetry loss is logged,
// not propagated.
type RelayMetrics interface {
	RecordDelivery(ctx context.Context, kind types.TargetKind, result MetricResult)
	RecordBatchLatency(ctx context.Context, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ RelayMetrics = (*CloudWatchRelayMetrics)(nil)

// CloudWatchRelayMetrics implements RelayMetrics by publishing to a
// CloudWatch namespace.
//
// Metrics emitted:
//   - DeliveryOutcome: Dims {DestinationKind, Result} -- on every message outcome
//   - BatchLatency: No dims -- wall time of one batch invocation
//   - QueueLag: No dims -- enqueue-to-processing delay from SentTimestamp
type CloudWatchRelayMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchRelayMetrics creates relay metrics publishing to the given
// namespace.
func NewCloudWatchRelayMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRelayMetrics {
	return &CloudWatchRelayMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits one DeliveryOutcome count with the destination kind
// and result as dimensions.
func (m *CloudWatchRelayMetrics) RecordDelivery(ctx context.Context, kind types.TargetKind, result MetricResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricDeliveryOutcome),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(dimDestinationKind),
						Value: aws.String(string(kind)),
					},
					{
						Name:  aws.String(dimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"destination_kind", string(kind),
			"result", string(result),
		)
	}
}

// RecordBatchLatency emits the wall time of one batch invocation in
// milliseconds.
func (m *CloudWatchRelayMetrics) RecordBatchLatency(ctx context.Context, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricBatchLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record batch latency metric",
			"error", err.Error(),
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// RecordQueueLag emits the delay between transport enqueue and processing
// start, derived from the message SentTimestamp.
func (m *CloudWatchRelayMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metricQueueLag),
				Value:      aws.Float64(float64(lag.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record queue lag metric",
			"error", err.Error(),
			"lag_ms", lag.Milliseconds(),
		)
	}
}

// NoopMetrics discards all telemetry. Used in tests and in the admin server,
// which has no per-message delivery path of its own.
type NoopMetrics struct{}

var _ RelayMetrics = NoopMetrics{}

func (NoopMetrics) RecordDelivery(context.Context, types.TargetKind, MetricResult) {}
func (NoopMetrics) RecordBatchLatency(context.Context, time.Duration)              {}
func (NoopMetrics) RecordQueueLag(context.Context, time.Duration)                  {}
