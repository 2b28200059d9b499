// Package config defines the configuration for the notification relay.
// Configuration is loaded once at process initialization (Lambda cold start)
// and is immutable thereafter. Values are resolved from the OS environment
// with a .env file as fallback; any missing required value or invalid format
// fails startup immediately rather than surfacing per-message.
package config

import (
	"time"

	"notifyrelay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used in configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration for the relay workers. Sub-components
// receive only the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"notifyrelay"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Destination DestinationConfig
	Webhook     WebhookConfig
	DeadLetter  DeadLetterConfig
	Orders      OrdersConfig
	Database    DatabaseConfig
	AWS         AWSConfig
	Audit       AuditConfig

	Observability ObservabilityConfig
}

// DestinationConfig selects and configures the default forward-as-is
// destination. Kind is validated here and parsed into a types.TargetKind by
// BuildDefaultTarget; an invalid selector fails startup, never a message.
type DestinationConfig struct {
	Kind string `envconfig:"DESTINATION_TYPE" validate:"required,oneof=AWS_SQS AWS_EVENTBRIDGE GCP_PUBSUB AZURE_STORAGE_QUEUE AZURE_SERVICE_BUS WEBHOOK"`

	QueueURL        string `envconfig:"DESTINATION_QUEUE_URL"`
	EventBusName    string `envconfig:"EVENT_BUS_NAME"`
	EventSource     string `envconfig:"EVENT_SOURCE" default:"notifyrelay"`
	PubSubProjectID string `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubTopicID   string `envconfig:"PUBSUB_TOPIC_ID"`
	StorageQueueURL string `envconfig:"AZURE_QUEUE_URL"`
	ServiceBusQueue string `envconfig:"AZURE_SERVICE_BUS_QUEUE"`
	// ServiceBusConnection is required when Kind is AZURE_SERVICE_BUS; the
	// azservicebus client is built from it at cold start.
	ServiceBusConnection SecretString `envconfig:"AZURE_SERVICE_BUS_CONNECTION_STRING"`
}

// WebhookConfig holds settings for outbound webhook delivery. The auth
// header pair is optional; when set it is attached to every POST.
type WebhookConfig struct {
	URL             string        `envconfig:"WEBHOOK_URL"`
	AuthHeaderName  string        `envconfig:"WEBHOOK_AUTH_HEADER_NAME"`
	AuthHeaderValue SecretString  `envconfig:"WEBHOOK_AUTH_HEADER_VALUE"`
	Timeout         time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	UserAgent       string        `envconfig:"WEBHOOK_USER_AGENT" default:"NotifyRelay-Webhook/1.0"`
}

// DeadLetterConfig holds the dead-letter queue location and drain tuning.
type DeadLetterConfig struct {
	QueueURL  string        `envconfig:"SQS_DLQ" validate:"required,url"`
	BatchSize int32         `envconfig:"DLQ_BATCH_SIZE" default:"10" validate:"min=1,max=10"`
	WaitTime  time.Duration `envconfig:"DLQ_WAIT_TIME" default:"1s"`
	MaxDrain  time.Duration `envconfig:"DLQ_MAX_DRAIN" default:"10m"`
}

// OrdersConfig holds the order lookup API endpoint and client tuning.
type OrdersConfig struct {
	BaseURL    string        `envconfig:"ORDERS_API_BASE_URL" validate:"required,url"`
	Timeout    time.Duration `envconfig:"ORDERS_API_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"ORDERS_API_MAX_RETRIES" default:"2" validate:"min=0,max=5"`
	UserAgent  string        `envconfig:"ORDERS_API_USER_AGENT" default:"NotifyRelay/1.0 (Language=Go)"`
}

// DatabaseConfig holds the subscriber store connection settings.
type DatabaseConfig struct {
	URL            SecretString  `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns       int           `envconfig:"DB_MAX_CONNS" default:"5"`
	AcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds regional configuration for the AWS SDK clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AuditConfig holds the durable skip/failure audit trail location.
// An empty path disables the archive.
type AuditConfig struct {
	ArchivePath string `envconfig:"AUDIT_ARCHIVE_PATH"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"NotifyRelay"`
}

// BuildDefaultTarget constructs the immutable DeliveryTarget used for
// forward-as-is dispatch from the destination configuration. It is the
// parse-at-startup boundary for the destination kind: after this returns,
// the hot path never sees an invalid kind.
func (c *Config) BuildDefaultTarget() (types.DeliveryTarget, error) {
	kind, err := types.ParseTargetKind(c.Destination.Kind)
	if err != nil {
		return types.DeliveryTarget{}, err
	}

	target := types.DeliveryTarget{
		Kind:            kind,
		QueueURL:        c.Destination.QueueURL,
		EventBusName:    c.Destination.EventBusName,
		EventSource:     c.Destination.EventSource,
		PubSubProjectID: c.Destination.PubSubProjectID,
		PubSubTopicID:   c.Destination.PubSubTopicID,
		StorageQueueURL: c.Destination.StorageQueueURL,
		ServiceBusQueue: c.Destination.ServiceBusQueue,
		Webhook: types.WebhookTarget{
			URL:             c.Webhook.URL,
			AuthHeaderName:  c.Webhook.AuthHeaderName,
			AuthHeaderValue: c.Webhook.AuthHeaderValue,
		},
	}

	if err := target.Validate(); err != nil {
		return types.DeliveryTarget{}, err
	}
	return target, nil
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure parsing environment values into their
	// target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrDestination indicates the destination target could not be built.
	ErrDestination ConfigErrorType = "DESTINATION_INVALID"
)
