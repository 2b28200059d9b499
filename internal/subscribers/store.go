// Package subscribers resolves subscription ids to delivery configuration.
// The relay consults this store; subscription lifecycle (create, update,
// delete) is owned elsewhere.
package subscribers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"notifyrelay/internal/types"
)

// Store is the lookup surface consumed by the enrichment workflow.
// "Not found" is an expected outcome and is returned as
// types.ErrSubscriberNotFound, not wrapped in a DeliveryError; the caller
// decides what a missing subscriber means for the message.
type Store interface {
	GetSubscriber(ctx context.Context, subscriptionID string) (*types.Subscriber, error)
}

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// store works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over a subscribers table. Each row carries
// the columns for every destination kind; only the columns matching
// destination_kind are non-null.
type PostgresStore struct {
	db     DBTX
	logger types.Logger
}

// NewPostgresStore creates a store backed by the given connection.
func NewPostgresStore(db DBTX, logger types.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// GetSubscriber looks up a subscriber by subscription id and assembles its
// delivery target. A row with an invalid destination kind or incomplete
// target columns is operator error, surfaced permanent so redelivery does
// not spin on it.
func (s *PostgresStore) GetSubscriber(ctx context.Context, subscriptionID string) (*types.Subscriber, error) {
	var (
		sub          types.Subscriber
		refreshToken string
		authValue    string
		kind         string
		target       types.DeliveryTarget
	)

	err := s.db.QueryRow(ctx,
		`SELECT subscription_id, seller_id, refresh_token, marketplace_id, contact_email,
		        destination_kind,
		        COALESCE(queue_url, ''),
		        COALESCE(event_bus_name, ''), COALESCE(event_source, ''),
		        COALESCE(pubsub_project_id, ''), COALESCE(pubsub_topic_id, ''),
		        COALESCE(storage_queue_url, ''),
		        COALESCE(service_bus_queue, ''),
		        COALESCE(webhook_url, ''), COALESCE(webhook_auth_header_name, ''),
		        COALESCE(webhook_auth_header_value, '')
		 FROM subscribers
		 WHERE subscription_id = $1 AND deleted_at IS NULL`,
		subscriptionID,
	).Scan(
		&sub.SubscriptionID, &sub.SellerID, &refreshToken, &sub.MarketplaceID, &sub.ContactEmail,
		&kind,
		&target.QueueURL,
		&target.EventBusName, &target.EventSource,
		&target.PubSubProjectID, &target.PubSubTopicID,
		&target.StorageQueueURL,
		&target.ServiceBusQueue,
		&target.Webhook.URL, &target.Webhook.AuthHeaderName, &authValue,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrSubscriberNotFound
		}
		return nil, types.Transient("subscribers.get", "subscriber query failed", err)
	}

	parsedKind, err := types.ParseTargetKind(kind)
	if err != nil {
		return nil, types.Permanent("subscribers.get",
			fmt.Sprintf("subscriber %s has invalid destination kind", subscriptionID), err)
	}
	target.Kind = parsedKind
	if err := target.Validate(); err != nil {
		return nil, types.Permanent("subscribers.get",
			fmt.Sprintf("subscriber %s has incomplete delivery target", subscriptionID), err)
	}

	sub.RefreshToken = types.SecretString(refreshToken)
	target.Webhook.AuthHeaderValue = types.SecretString(authValue)
	sub.DeliveryTarget = target

	s.logger.Info("subscriber resolved",
		"subscription_id", sub.SubscriptionID,
		"destination_kind", string(target.Kind),
	)
	return &sub, nil
}
