package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ActionExecutor turns a validated decision into persisted effects: an audit
// record, an optional outbound email or payment plan, and the invoice's
// updated collection state. Execution failures (undeliverable email, channel
// error) are recorded on the audit record and counted; they do not abort the
// invoice, so the follow-up bookkeeping still lands.
type ActionExecutor struct {
	invoices collection.InvoiceRepository
	actions  collection.CollectionActionRepository
	plans    collection.PaymentPlanRepository
	channel  collection.NotificationChannel
	logger   *zap.Logger
}

// NewActionExecutor creates a new ActionExecutor
func NewActionExecutor(
	invoices collection.InvoiceRepository,
	actions collection.CollectionActionRepository,
	plans collection.PaymentPlanRepository,
	channel collection.NotificationChannel,
	logger *zap.Logger,
) *ActionExecutor {
	return &ActionExecutor{
		invoices: invoices,
		actions:  actions,
		plans:    plans,
		channel:  channel,
		logger:   logger,
	}
}

// Execute applies one decision to one invoice and returns the stat delta.
// A non-nil error means the effect could not be persisted at all; partial
// failures (send errors, missing email) come back as Errors in the stats with
// a nil error.
func (e *ActionExecutor) Execute(
	ctx context.Context,
	invoice *collection.Invoice,
	decision collection.CollectionDecision,
	logID uuid.UUID,
) (ActionStats, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collector", "execute_action")
	defer span.End()
	telemetry.SetAttributes(span,
		"invoice_number", invoice.InvoiceNumber,
		"action", decision.Action.String(),
	)

	switch decision.Action {
	case collection.DecisionSendReminder, collection.DecisionEscalate:
		return e.executeReminder(ctx, invoice, decision, logID)
	case collection.DecisionOfferPaymentPlan:
		return e.executePaymentPlan(ctx, invoice, decision, logID)
	case collection.DecisionWait:
		return e.executeWait(ctx, invoice, decision, logID)
	case collection.DecisionManualReview:
		return e.executeManualReview(ctx, invoice, decision, logID)
	default:
		return ActionStats{}, fmt.Errorf("unknown decision action: %s", decision.Action)
	}
}

// executeReminder handles SEND_REMINDER and ESCALATE, which only differ in
// the audit action type and the severity the provider chose.
func (e *ActionExecutor) executeReminder(
	ctx context.Context,
	invoice *collection.Invoice,
	decision collection.CollectionDecision,
	logID uuid.UUID,
) (ActionStats, error) {
	now := time.Now()
	stats := ActionStats{}

	action := collection.NewCollectionAction(
		invoice.TenantID, invoice.ID, logID,
		collection.ActionTypeFromDecision(decision.Action),
		collection.ActionChannelEmail,
		decision.Reasoning,
	).WithEmail(invoice.ClientEmail, decision.EmailSubject, decision.EmailBody)

	if err := e.actions.Create(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to create action record: %w", err)
	}
	stats.ActionsCreated++

	if !invoice.HasClientEmail() {
		// Nothing to deliver to; the channel is never invoked
		action.MarkFailed(now, "invoice has no client email")
		stats.Errors++
		if err := e.actions.Update(ctx, action); err != nil {
			return stats, fmt.Errorf("failed to update action record: %w", err)
		}
		e.logger.Warn("Skipping notification for invoice without client email",
			zap.String("invoice_number", invoice.InvoiceNumber))
		return stats, nil
	}

	result := e.channel.Send(ctx, collection.Message{
		To:      invoice.ClientEmail,
		Subject: decision.EmailSubject,
		Body:    decision.EmailBody,
	})
	if result.Success {
		action.MarkSent(now)
		stats.EmailsSent++
	} else {
		action.MarkFailed(now, result.Error)
		stats.Errors++
		e.logger.Warn("Notification delivery failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("error", result.Error))
	}
	if err := e.actions.Update(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to update action record: %w", err)
	}

	// The follow-up is recorded even when delivery failed so the invoice
	// does not get hammered on every subsequent run
	invoice.RecordFollowUp(now, decision.EscalationLevel, decision.Reasoning)
	if err := e.invoices.SaveWithLock(ctx, invoice); err != nil {
		return stats, fmt.Errorf("failed to save invoice: %w", err)
	}

	return stats, nil
}

func (e *ActionExecutor) executePaymentPlan(
	ctx context.Context,
	invoice *collection.Invoice,
	decision collection.CollectionDecision,
	logID uuid.UUID,
) (ActionStats, error) {
	now := time.Now()
	stats := ActionStats{}

	plan, err := e.findOpenProposal(ctx, invoice)
	if err != nil {
		return stats, err
	}
	if plan == nil {
		plan, err = collection.NewPaymentPlan(invoice.TenantID, invoice.ID, invoice.OutstandingAmount(), now)
		if err != nil {
			return stats, fmt.Errorf("failed to build payment plan: %w", err)
		}
		if err := e.plans.Create(ctx, plan); err != nil {
			return stats, fmt.Errorf("failed to create payment plan: %w", err)
		}
	} else {
		e.logger.Info("Re-offering existing payment plan proposal",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("payment_plan_id", plan.ID.String()))
	}

	body := decision.EmailBody + renderPlanSummary(plan)
	action := collection.NewCollectionAction(
		invoice.TenantID, invoice.ID, logID,
		collection.ActionTypeOfferPaymentPlan,
		collection.ActionChannelEmail,
		decision.Reasoning,
	).WithEmail(invoice.ClientEmail, decision.EmailSubject, body).
		WithMetadata("payment_plan_id", plan.ID.String())

	if err := e.actions.Create(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to create action record: %w", err)
	}
	stats.ActionsCreated++

	if !invoice.HasClientEmail() {
		action.MarkFailed(now, "invoice has no client email")
		stats.Errors++
		if err := e.actions.Update(ctx, action); err != nil {
			return stats, fmt.Errorf("failed to update action record: %w", err)
		}
		return stats, nil
	}

	result := e.channel.Send(ctx, collection.Message{
		To:      invoice.ClientEmail,
		Subject: decision.EmailSubject,
		Body:    body,
	})
	if result.Success {
		action.MarkSent(now)
		stats.EmailsSent++
	} else {
		action.MarkFailed(now, result.Error)
		stats.Errors++
		e.logger.Warn("Payment plan notification delivery failed",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("error", result.Error))
	}
	if err := e.actions.Update(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to update action record: %w", err)
	}

	invoice.RecordPaymentPlanOffer(now, decision.Reasoning)
	if err := e.invoices.SaveWithLock(ctx, invoice); err != nil {
		return stats, fmt.Errorf("failed to save invoice: %w", err)
	}

	return stats, nil
}

// findOpenProposal returns the invoice's newest PROPOSED plan, if any. A
// repeated OFFER_PAYMENT_PLAN decision re-offers the open proposal instead of
// stacking a second plan against the same invoice.
func (e *ActionExecutor) findOpenProposal(ctx context.Context, invoice *collection.Invoice) (*collection.PaymentPlan, error) {
	existing, err := e.plans.FindByInvoice(ctx, invoice.TenantID, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment plans: %w", err)
	}
	for i := range existing {
		if existing[i].Status == collection.PaymentPlanStatusProposed {
			return &existing[i], nil
		}
	}
	return nil, nil
}

func (e *ActionExecutor) executeWait(
	ctx context.Context,
	invoice *collection.Invoice,
	decision collection.CollectionDecision,
	logID uuid.UUID,
) (ActionStats, error) {
	now := time.Now()
	stats := ActionStats{}

	invoice.ScheduleWait(now, decision.WaitDays, decision.Reasoning)

	action := collection.NewCollectionAction(
		invoice.TenantID, invoice.ID, logID,
		collection.ActionTypeWait,
		collection.ActionChannelNone,
		decision.Reasoning,
	)
	action.MarkScheduled(now, *invoice.NextActionDate)

	if err := e.actions.Create(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to create action record: %w", err)
	}
	stats.ActionsCreated++

	if err := e.invoices.SaveWithLock(ctx, invoice); err != nil {
		return stats, fmt.Errorf("failed to save invoice: %w", err)
	}

	return stats, nil
}

func (e *ActionExecutor) executeManualReview(
	ctx context.Context,
	invoice *collection.Invoice,
	decision collection.CollectionDecision,
	logID uuid.UUID,
) (ActionStats, error) {
	now := time.Now()
	stats := ActionStats{}

	invoice.FlagForReview(now, decision.Reasoning)

	action := collection.NewCollectionAction(
		invoice.TenantID, invoice.ID, logID,
		collection.ActionTypeManualReview,
		collection.ActionChannelNone,
		decision.Reasoning,
	)
	action.MarkCompleted(now)

	if err := e.actions.Create(ctx, action); err != nil {
		return stats, fmt.Errorf("failed to create action record: %w", err)
	}
	stats.ActionsCreated++

	if err := e.invoices.SaveWithLock(ctx, invoice); err != nil {
		return stats, fmt.Errorf("failed to save invoice: %w", err)
	}

	return stats, nil
}

func renderPlanSummary(plan *collection.PaymentPlan) string {
	return fmt.Sprintf(
		"<hr><p><strong>Proposed payment plan</strong></p>"+
			"<p>%d monthly installments of %s, first installment due %s.</p>",
		plan.InstallmentCount,
		plan.InstallmentAmount.StringFixed(2),
		plan.NextDueDate.Format("January 2, 2006"),
	)
}
