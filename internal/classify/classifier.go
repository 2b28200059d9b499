// Package classify decides what the relay does with an inbound notification
// envelope: skip it, forward it as-is, or run it through the order
// enrichment workflow. Classification is a pure function of the envelope --
// no I/O, no side effects -- so the same envelope always classifies the same
// way on first pass and on dead-letter reprocessing.
package classify

import (
	"notifyrelay/internal/types"
)

// Decision is the three-way classification outcome. Skip is an intentional
// "do not forward", not a failure.
type Decision string

const (
	DecisionSkip    Decision = "skip"
	DecisionForward Decision = "forward_as_is"
	DecisionEnrich  Decision = "requires_enrichment"
)

// nonActionableOrderStatuses are order states that carry no information a
// subscriber can act on. ORDER_CHANGE notifications in these states are
// skipped rather than enriched.
var nonActionableOrderStatuses = map[string]struct{}{
	"Pending":             {},
	"PendingAvailability": {},
}

// Classify inspects an envelope and returns the pipeline decision.
//
// Rules:
//   - Unrecognized notificationType -> Skip (unknown types are never
//     forwarded blindly).
//   - ORDER_CHANGE with a non-actionable status (e.g. Pending) -> Skip.
//   - ORDER_CHANGE otherwise -> RequiresEnrichment. A missing
//     subscriptionId or undecodable payload is a permanent failure: the
//     enrichment workflow could never resolve the subscriber, so silently
//     forwarding a partial result is not an option.
//   - Every other known type -> ForwardAsIs.
func Classify(env *types.NotificationEnvelope) (Decision, error) {
	if !env.NotificationType.IsKnown() {
		return DecisionSkip, nil
	}

	if env.NotificationType != types.TypeOrderChange {
		return DecisionForward, nil
	}

	payload, err := env.OrderChange()
	if err != nil {
		return "", types.Permanent("classify", "undecodable ORDER_CHANGE payload", err)
	}

	if _, skip := nonActionableOrderStatuses[payload.OrderStatus]; skip {
		return DecisionSkip, nil
	}

	if env.Metadata.SubscriptionID == "" {
		return "", types.Permanent("classify", "ORDER_CHANGE requires enrichment but subscriptionId is absent", nil)
	}
	if payload.AmazonOrderID == "" {
		return "", types.Permanent("classify", "ORDER_CHANGE payload has no AmazonOrderId", nil)
	}

	return DecisionEnrich, nil
}
