// Package relay contains the shared classify->enrich->dispatch pipeline and
// the batch handler that feeds it from SQS. The dead-letter reprocessor
// drives the same pipeline, so first-pass delivery and reprocessing cannot
// drift apart.
package relay

import (
	"context"

	"notifyrelay/internal/classify"
	"notifyrelay/internal/enrich"
	"notifyrelay/internal/types"
)

// Outcome is the three-way result of processing one message body.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeForwarded Outcome = "forwarded"
	OutcomeEnriched  Outcome = "enriched"
)

// Dispatcher is the destination-adapter surface the pipeline forwards
// through. Satisfied by *destinations.Dispatcher.
type Dispatcher interface {
	Send(ctx context.Context, target types.DeliveryTarget, payload []byte) error
}

// Workflow runs the order enrichment path and reports which destination
// kind the dispatch was addressed to. Satisfied by *enrich.OrderWorkflow.
type Workflow interface {
	Run(ctx context.Context, env *types.NotificationEnvelope) (types.TargetKind, error)
}

var _ Workflow = (*enrich.OrderWorkflow)(nil)

// Pipeline applies classification and routes one message body to its
// outcome: skip, forward as-is to the default target, or enrich and
// dispatch to the subscriber's target. It holds no per-message state, so
// concurrent invocations are safe.
type Pipeline struct {
	dispatcher    Dispatcher
	workflow      Workflow
	defaultTarget types.DeliveryTarget
	archive       FailureArchive
	clock         types.Clock
	logger        types.Logger
}

// NewPipeline wires the pipeline. defaultTarget is where ForwardAsIs
// messages go; enrichment-path messages go to the subscriber's own target.
func NewPipeline(dispatcher Dispatcher, workflow Workflow, defaultTarget types.DeliveryTarget, archive FailureArchive, clock types.Clock, logger types.Logger) *Pipeline {
	return &Pipeline{
		dispatcher:    dispatcher,
		workflow:      workflow,
		defaultTarget: defaultTarget,
		archive:       archive,
		clock:         clock,
		logger:        logger,
	}
}

// ProcessBody parses, classifies, and delivers one raw message body. The
// returned kind names the destination the message was (or would have been)
// addressed to, for telemetry dimensions; skips and pre-resolution failures
// report the default target's kind.
//
// Bodies still wearing an event-bus wrapper are unwrapped first, so a
// forwarded message never re-dispatches the wrapper artifact.
//
// A nil error with OutcomeSkipped means the message is done and must not be
// redelivered. A non-nil error is classified Transient or Permanent; either
// way the caller records the message as failed, and permanent outcomes are
// additionally written to the failure archive here.
func (p *Pipeline) ProcessBody(ctx context.Context, messageID string, body []byte) (Outcome, types.TargetKind, error) {
	defaultKind := p.defaultTarget.Kind

	env, canonical, err := types.ParseEnvelope(body)
	if err != nil {
		perr := types.Permanent("relay.parse", "message body is not a notification envelope", err)
		p.recordAudit(messageID, nil, AuditPermanentFailure, perr.Error(), string(body))
		return "", defaultKind, perr
	}

	log := p.logger.With(
		"message_id", messageID,
		"notification_id", env.Metadata.NotificationID,
		"notification_type", string(env.NotificationType),
	)

	decision, err := classify.Classify(env)
	if err != nil {
		p.recordAudit(messageID, env, AuditPermanentFailure, err.Error(), string(canonical))
		return "", defaultKind, err
	}

	switch decision {
	case classify.DecisionSkip:
		log.Info("notification skipped")
		p.recordAudit(messageID, env, AuditSkipped, "classifier decision", "")
		return OutcomeSkipped, defaultKind, nil

	case classify.DecisionForward:
		if err := p.dispatcher.Send(ctx, p.defaultTarget, canonical); err != nil {
			p.auditIfPermanent(messageID, env, err, string(canonical))
			return "", defaultKind, err
		}
		log.Info("notification forwarded", "destination_kind", string(defaultKind))
		return OutcomeForwarded, defaultKind, nil

	default: // classify.DecisionEnrich
		kind, err := p.workflow.Run(ctx, env)
		if kind == "" {
			// The workflow failed before resolving the subscriber's target.
			kind = defaultKind
		}
		if err != nil {
			p.auditIfPermanent(messageID, env, err, string(canonical))
			return "", kind, err
		}
		return OutcomeEnriched, kind, nil
	}
}

func (p *Pipeline) auditIfPermanent(messageID string, env *types.NotificationEnvelope, err error, body string) {
	if types.IsPermanent(err) {
		p.recordAudit(messageID, env, AuditPermanentFailure, err.Error(), body)
	}
}

func (p *Pipeline) recordAudit(messageID string, env *types.NotificationEnvelope, outcome AuditOutcome, reason, body string) {
	entry := auditEntryFor(p.clock.Now(), messageID, env, outcome, reason, body)
	if err := p.archive.Record(entry); err != nil {
		p.logger.Warn("failed to write audit archive entry",
			"message_id", messageID,
			"error", err.Error(),
		)
	}
}
