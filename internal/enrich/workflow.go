// Package enrich runs the order enrichment workflow: a linear state machine
// that resolves subscriber credentials, fetches order data, composes a
// human-readable message, and dispatches it to the subscriber's delivery
// target. Any step failure aborts the unit; there is no partial dispatch.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"notifyrelay/internal/orders"
	"notifyrelay/internal/subscribers"
	"notifyrelay/internal/types"
)

// Dispatcher is the destination-adapter surface the workflow dispatches
// through. Satisfied by *destinations.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, target types.DeliveryTarget, payload []byte) error
}

// EnrichmentContext is the working state threaded through the workflow.
// Each field is written by exactly one step and never overwritten: a step
// that cannot populate its field fails the whole unit instead of proceeding
// with partial data.
type EnrichmentContext struct {
	// Workflow entry.
	SubscriptionID string
	AmazonOrderID  string
	// ResolveCredentials.
	Subscriber *types.Subscriber
	// FetchOrder.
	Order *types.Order
	Items []types.OrderItem
	// ComposeMessage.
	Composed ComposedMessage
}

// OrderWorkflow orchestrates ResolveCredentials -> FetchOrder ->
// ComposeMessage -> Dispatch for ORDER_CHANGE notifications.
type OrderWorkflow struct {
	store      subscribers.Store
	orders     orders.API
	dispatcher Dispatcher
	logger     types.Logger
}

// NewOrderWorkflow wires the workflow's collaborators.
func NewOrderWorkflow(store subscribers.Store, ordersAPI orders.API, dispatcher Dispatcher, logger types.Logger) *OrderWorkflow {
	return &OrderWorkflow{
		store:      store,
		orders:     ordersAPI,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run executes the workflow for one envelope and reports the subscriber's
// destination kind once it is known; before credential resolution the kind
// is empty. The error, when non-nil, is classified Transient or Permanent;
// the caller turns that into a retry-via-redelivery or a terminal-failure
// decision.
func (w *OrderWorkflow) Run(ctx context.Context, env *types.NotificationEnvelope) (types.TargetKind, error) {
	payload, err := env.OrderChange()
	if err != nil {
		return "", types.Permanent("enrich.run", "envelope is not an enrichable ORDER_CHANGE", err)
	}

	ec := &EnrichmentContext{
		SubscriptionID: env.Metadata.SubscriptionID,
		AmazonOrderID:  payload.AmazonOrderID,
	}
	log := w.logger.With(
		"subscription_id", ec.SubscriptionID,
		"amazon_order_id", ec.AmazonOrderID,
	)

	if err := w.resolveCredentials(ctx, ec); err != nil {
		return "", err
	}
	kind := ec.Subscriber.DeliveryTarget.Kind

	if err := w.fetchOrder(ctx, ec); err != nil {
		return kind, err
	}
	ec.Composed = Compose(ec.AmazonOrderID, ec.Order, ec.Items)

	if err := w.dispatch(ctx, ec); err != nil {
		return kind, err
	}

	log.Info("order notification enriched and dispatched",
		"destination_kind", string(kind),
		"item_count", len(ec.Items),
	)
	return kind, nil
}

// resolveCredentials looks up the subscriber. A missing subscriber is
// permanent: the subscription is gone and retrying cannot bring it back.
func (w *OrderWorkflow) resolveCredentials(ctx context.Context, ec *EnrichmentContext) error {
	sub, err := w.store.GetSubscriber(ctx, ec.SubscriptionID)
	if err != nil {
		if errors.Is(err, types.ErrSubscriberNotFound) {
			return types.Permanent("enrich.resolveCredentials",
				fmt.Sprintf("no subscriber for subscription %s", ec.SubscriptionID), err)
		}
		return err
	}
	ec.Subscriber = sub
	return nil
}

// fetchOrder retrieves the order header and line items. The orders client
// classifies its own failures (404 permanent, network/5xx transient), so
// errors pass through untouched.
func (w *OrderWorkflow) fetchOrder(ctx context.Context, ec *EnrichmentContext) error {
	order, err := w.orders.GetOrder(ctx, ec.Subscriber.RefreshToken, ec.AmazonOrderID)
	if err != nil {
		return err
	}
	items, err := w.orders.GetOrderItems(ctx, ec.Subscriber.RefreshToken, ec.AmazonOrderID)
	if err != nil {
		return err
	}
	ec.Order = order
	ec.Items = items
	return nil
}

// dispatch serializes the composed message and hands it to the destination
// adapter, addressed to the subscriber's resolved target.
func (w *OrderWorkflow) dispatch(ctx context.Context, ec *EnrichmentContext) error {
	body, err := json.Marshal(ec.Composed)
	if err != nil {
		return types.Permanent("enrich.dispatch", "failed to serialize composed message", err)
	}
	return w.dispatcher.Send(ctx, ec.Subscriber.DeliveryTarget, body)
}
