package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// defaultProviderTimeout bounds a single decision provider call. A
	// timeout is treated like any other provider failure and routed through
	// the manual-review fallback.
	defaultProviderTimeout = 60 * time.Second

	// priorActionContextLimit caps how many prior actions are rendered into
	// the prompt.
	priorActionContextLimit = 5
)

const systemPrompt = `You are a professional accounts-receivable collection assistant for a small-business accounting platform.
Given one overdue invoice, the client's payment history and the previous collection actions, decide the single next action.

Respond with STRICT JSON only, no prose, matching exactly:
{
  "action": "SEND_REMINDER" | "OFFER_PAYMENT_PLAN" | "ESCALATE" | "WAIT" | "MANUAL_REVIEW",
  "reasoning": "<short explanation>",
  "escalationLevel": "NONE" | "FRIENDLY_REMINDER" | "FIRM_REMINDER" | "URGENT_NOTICE" | "FINAL_NOTICE" | "LEGAL_WARNING",
  "emailSubject": "<subject, required for SEND_REMINDER/OFFER_PAYMENT_PLAN/ESCALATE>",
  "emailBody": "<HTML body, required for SEND_REMINDER/OFFER_PAYMENT_PLAN/ESCALATE>",
  "waitDays": <integer, only for WAIT>
}

Escalation guidance: 1-3 days overdue -> FRIENDLY_REMINDER, 4-7 -> FIRM_REMINDER, 8-14 -> URGENT_NOTICE, 15-30 -> FINAL_NOTICE, over 30 -> LEGAL_WARNING.
Treat clients with a high reliability score more softly and unreliable clients more firmly. Offer a payment plan when the amount is large and the client is struggling but engaged.`

// DecisionEngine wraps the decision provider with domain-specific prompt
// construction, output validation and a deterministic fallback. Decide never
// fails: any provider or parsing problem yields a MANUAL_REVIEW decision,
// which is what keeps the run loop alive under provider instability.
type DecisionEngine struct {
	provider collection.DecisionProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDecisionEngine creates a new DecisionEngine
func NewDecisionEngine(provider collection.DecisionProvider, logger *zap.Logger) *DecisionEngine {
	return &DecisionEngine{
		provider: provider,
		timeout:  defaultProviderTimeout,
		logger:   logger,
	}
}

// WithTimeout overrides the per-call provider timeout
func (e *DecisionEngine) WithTimeout(timeout time.Duration) *DecisionEngine {
	e.timeout = timeout
	return e
}

// Decide obtains a validated collection decision for one invoice. There are
// no retries: the provider already saw the full context, and a second call
// would stall the batch without improving a malformed answer.
func (e *DecisionEngine) Decide(
	ctx context.Context,
	invoice *collection.Invoice,
	profile collection.ClientHistoryProfile,
	priorActions []collection.CollectionAction,
) collection.CollectionDecision {
	ctx, span := telemetry.StartServiceSpan(ctx, "collector", "decide")
	defer span.End()
	telemetry.SetAttributes(span,
		"invoice_number", invoice.InvoiceNumber,
		"days_overdue", invoice.DaysOverdue(time.Now()),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.provider.Complete(callCtx, collection.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   e.buildUserPrompt(invoice, profile, priorActions),
		MaxTokens:    1024,
		Temperature:  0.2,
	})
	if err != nil {
		return e.fallback(span, invoice, fmt.Errorf("decision provider call failed: %w", err))
	}

	decision, err := parseDecision(raw)
	if err != nil {
		return e.fallback(span, invoice, err)
	}

	// A decision without an explicit level keeps the invoice where it is
	if decision.EscalationLevel == "" {
		decision.EscalationLevel = invoice.EscalationLevel
	}

	telemetry.SetAttribute(span, "decision_action", decision.Action.String())
	return decision
}

func (e *DecisionEngine) fallback(span trace.Span, invoice *collection.Invoice, cause error) collection.CollectionDecision {
	telemetry.RecordError(span, cause)
	e.logger.Warn("Decision engine falling back to manual review",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Error(cause))
	return collection.FallbackDecision(invoice.EscalationLevel, cause)
}

// parseDecision extracts and validates a decision from the provider's raw
// response text
func parseDecision(raw string) (collection.CollectionDecision, error) {
	var decision collection.CollectionDecision

	payload := extractJSON(raw)
	if payload == "" {
		return decision, fmt.Errorf("no JSON object found in provider response")
	}
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		return decision, fmt.Errorf("failed to parse provider response: %w", err)
	}
	if err := decision.Validate(); err != nil {
		return decision, err
	}
	return decision, nil
}

// buildUserPrompt renders the structured per-invoice context
func (e *DecisionEngine) buildUserPrompt(
	invoice *collection.Invoice,
	profile collection.ClientHistoryProfile,
	priorActions []collection.CollectionAction,
) string {
	now := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s\n", invoice.InvoiceNumber)
	fmt.Fprintf(&b, "- client: %s <%s>\n", invoice.ClientName, invoice.ClientEmail)
	fmt.Fprintf(&b, "- total: %s, paid: %s, outstanding: %s\n",
		invoice.TotalAmount.StringFixed(2), invoice.PaidAmount.StringFixed(2), invoice.OutstandingAmount().StringFixed(2))
	fmt.Fprintf(&b, "- issued: %s, due: %s, days overdue: %d\n",
		invoice.IssueDate.Format("2006-01-02"), invoice.DueDate.Format("2006-01-02"), invoice.DaysOverdue(now))
	fmt.Fprintf(&b, "- status: %s, escalation level: %s, follow-ups so far: %d\n",
		invoice.Status, invoice.EscalationLevel, invoice.FollowUpCount)

	fmt.Fprintf(&b, "\nClient payment history\n")
	fmt.Fprintf(&b, "- invoices: %d total, %d paid, %d paid on time\n",
		profile.TotalInvoices, profile.TotalPaid, profile.PaidOnTime)
	fmt.Fprintf(&b, "- average days to payment: %.1f\n", profile.AvgDaysToPayment)
	standing := "unreliable"
	if profile.Reliable() {
		standing = "reliable"
	}
	fmt.Fprintf(&b, "- reliability score: %.2f (%s payer)\n", profile.ReliabilityScore, standing)
	fmt.Fprintf(&b, "- currently overdue: %d invoices totalling %s\n",
		profile.OverdueCount, profile.OverdueAmount.StringFixed(2))

	fmt.Fprintf(&b, "\nPrevious collection actions\n")
	if len(priorActions) == 0 {
		b.WriteString("- none\n")
	}
	limit := len(priorActions)
	if limit > priorActionContextLimit {
		limit = priorActionContextLimit
	}
	for i := 0; i < limit; i++ {
		action := &priorActions[i]
		fmt.Fprintf(&b, "- %s: %s (%s), %s\n",
			action.CreatedAt.Format("2006-01-02"), action.ActionType, action.Status, action.Reasoning)
	}

	return b.String()
}
