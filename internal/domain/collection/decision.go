package collection

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DecisionAction is the next-action recommendation produced per invoice
type DecisionAction string

const (
	DecisionSendReminder     DecisionAction = "SEND_REMINDER"
	DecisionOfferPaymentPlan DecisionAction = "OFFER_PAYMENT_PLAN"
	DecisionEscalate         DecisionAction = "ESCALATE"
	DecisionWait             DecisionAction = "WAIT"
	DecisionManualReview     DecisionAction = "MANUAL_REVIEW"
)

// IsValid checks if the action is a known decision action
func (a DecisionAction) IsValid() bool {
	switch a {
	case DecisionSendReminder, DecisionOfferPaymentPlan, DecisionEscalate,
		DecisionWait, DecisionManualReview:
		return true
	}
	return false
}

// String returns the string representation of DecisionAction
func (a DecisionAction) String() string {
	return string(a)
}

// RequiresEmail returns true if executing the action sends a notification
func (a DecisionAction) RequiresEmail() bool {
	return a == DecisionSendReminder || a == DecisionOfferPaymentPlan || a == DecisionEscalate
}

// CollectionDecision is the ephemeral per-invoice outcome of the decision
// engine. It is never persisted verbatim; only its executed effects are.
type CollectionDecision struct {
	Action          DecisionAction  `json:"action" validate:"required,oneof=SEND_REMINDER OFFER_PAYMENT_PLAN ESCALATE WAIT MANUAL_REVIEW"`
	Reasoning       string          `json:"reasoning" validate:"required"`
	EscalationLevel EscalationLevel `json:"escalationLevel,omitempty" validate:"omitempty,oneof=NONE FRIENDLY_REMINDER FIRM_REMINDER URGENT_NOTICE FINAL_NOTICE LEGAL_WARNING"`
	EmailSubject    string          `json:"emailSubject,omitempty"`
	EmailBody       string          `json:"emailBody,omitempty"`
	WaitDays        int             `json:"waitDays,omitempty" validate:"omitempty,min=1,max=90"`
}

var decisionValidator = validator.New()

// Validate checks the decision against the expected shape
func (d *CollectionDecision) Validate() error {
	if err := decisionValidator.Struct(d); err != nil {
		return fmt.Errorf("invalid decision shape: %w", err)
	}
	return nil
}

// FallbackDecision synthesizes the deterministic MANUAL_REVIEW decision used
// when the provider fails or returns an unusable response. It preserves the
// invoice's current escalation level and carries the failure as reasoning.
func FallbackDecision(current EscalationLevel, cause error) CollectionDecision {
	return CollectionDecision{
		Action:          DecisionManualReview,
		Reasoning:       fmt.Sprintf("Automatic fallback: %v", cause),
		EscalationLevel: current,
	}
}
