// Package app performs cold-start wiring shared by the relay worker, the
// dead-letter reprocessor, and the admin server: configuration, logging,
// SDK clients, the destination dispatcher, and the processing pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/pubsub"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"notifyrelay/internal/config"
	"notifyrelay/internal/destinations"
	"notifyrelay/internal/dlq"
	"notifyrelay/internal/enrich"
	"notifyrelay/internal/orders"
	"notifyrelay/internal/relay"
	"notifyrelay/internal/subscribers"
	"notifyrelay/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info/Error/Warn directly, but With returns
// *slog.Logger rather than types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

// NewLogger builds the process-wide JSON slog logger at the configured
// level, plus its types.Logger adaptation for inner components.
func NewLogger(level string) (*slog.Logger, types.Logger) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	return logger, &slogAdapter{logger: logger}
}

// App holds the wired components a process entrypoint picks from.
type App struct {
	Cfg         *config.Config
	Logger      *slog.Logger
	TypedLogger types.Logger

	Dispatcher  *destinations.Dispatcher
	Pipeline    *relay.Pipeline
	Handler     *relay.Handler
	Reprocessor *dlq.Reprocessor
	Metrics     relay.RelayMetrics

	cleanups []func()
}

// Bootstrap loads configuration and wires the full pipeline. Any failure is
// a startup failure; callers exit rather than serve traffic half-wired.
func Bootstrap(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, typed := NewLogger(cfg.LogLevel)
	logger.Info("initializing", "service", cfg.Service, "environment", cfg.Environment)

	a := &App{Cfg: cfg, Logger: logger, TypedLogger: typed}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS SDK config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	ebClient := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)
	a.Metrics = relay.NewCloudWatchRelayMetrics(cwClient, cfg.Observability.MetricNamespace, typed)

	dispatcher, err := a.buildDispatcher(ctx, sqsClient, ebClient)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = dispatcher

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse subscriber store URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect subscriber store: %w", err)
	}
	a.cleanups = append(a.cleanups, pool.Close)
	store := subscribers.NewPostgresStore(pool, typed)

	retry := orders.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Orders.MaxRetries
	ordersClient := orders.NewClient(
		cfg.Orders.BaseURL,
		&http.Client{Timeout: cfg.Orders.Timeout},
		typed,
		orders.WithRetryPolicy(retry),
		orders.WithUserAgent(cfg.Orders.UserAgent),
	)

	workflow := enrich.NewOrderWorkflow(store, ordersClient, dispatcher, typed)

	archive, err := a.buildArchive()
	if err != nil {
		a.Close()
		return nil, err
	}

	defaultTarget, err := cfg.BuildDefaultTarget()
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := types.RealClock{}
	a.Pipeline = relay.NewPipeline(dispatcher, workflow, defaultTarget, archive, clock, typed)
	a.Handler = relay.NewHandler(a.Pipeline, a.Metrics, clock, typed)
	a.Reprocessor = dlq.NewReprocessor(sqsClient, dlq.Config{
		QueueURL:  cfg.DeadLetter.QueueURL,
		BatchSize: cfg.DeadLetter.BatchSize,
		WaitTime:  cfg.DeadLetter.WaitTime,
		MaxDrain:  cfg.DeadLetter.MaxDrain,
	}, a.Pipeline, clock, typed)

	logger.Info("initialized",
		"destination_kind", cfg.Destination.Kind,
		"dlq", cfg.DeadLetter.QueueURL,
	)
	return a, nil
}

// buildDispatcher wires every transport a delivery target can name. AWS and
// webhook senders are always available; GCP and Azure senders are wired only
// when their configuration is present, since subscriber targets of those
// kinds cannot be served without it.
func (a *App) buildDispatcher(ctx context.Context, sqsClient *sqs.Client, ebClient *eventbridge.Client) (*destinations.Dispatcher, error) {
	cfg := a.Cfg
	typed := a.TypedLogger

	opts := []destinations.DispatcherOption{
		destinations.WithSQS(destinations.NewSQSDestination(sqsClient, typed)),
		destinations.WithEventBridge(destinations.NewEventBridgeDestination(ebClient, typed)),
		destinations.WithStorageQueue(destinations.NewStorageQueueDestination(destinations.DefaultStorageQueueFactory(), typed)),
		destinations.WithWebhook(destinations.NewWebhookDestination(cfg.Webhook.Timeout, cfg.Webhook.UserAgent, typed)),
	}

	if cfg.Destination.PubSubProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Destination.PubSubProjectID)
		if err != nil {
			return nil, fmt.Errorf("create Pub/Sub client: %w", err)
		}
		publisher := destinations.NewGooglePublisher(client)
		a.cleanups = append(a.cleanups, publisher.Close, func() { client.Close() })
		opts = append(opts, destinations.WithPubSub(destinations.NewPubSubDestination(publisher, typed)))
	}

	if cfg.Destination.ServiceBusConnection.Unmask() != "" {
		client, err := azservicebus.NewClientFromConnectionString(cfg.Destination.ServiceBusConnection.Unmask(), nil)
		if err != nil {
			return nil, fmt.Errorf("create Service Bus client: %w", err)
		}
		factory := destinations.NewServiceBusSenderFactory(client)
		opts = append(opts, destinations.WithServiceBus(destinations.NewServiceBusDestination(factory, typed)))
	}

	return destinations.NewDispatcher(typed, opts...), nil
}

func (a *App) buildArchive() (relay.FailureArchive, error) {
	if a.Cfg.Audit.ArchivePath == "" {
		return relay.NoopArchive{}, nil
	}
	archive, err := relay.NewZstdArchive(a.Cfg.Audit.ArchivePath)
	if err != nil {
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() { archive.Close() })
	return archive, nil
}

// Close releases pooled clients in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
