package collection

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
)

// ActionType classifies an executed collection effect
type ActionType string

const (
	ActionTypeSendReminder     ActionType = "SEND_REMINDER"
	ActionTypeOfferPaymentPlan ActionType = "OFFER_PAYMENT_PLAN"
	ActionTypeEscalate         ActionType = "ESCALATE"
	ActionTypeWait             ActionType = "WAIT"
	ActionTypeManualReview     ActionType = "MANUAL_REVIEW"
)

// ActionTypeFromDecision maps a decision action onto its audit action type
func ActionTypeFromDecision(a DecisionAction) ActionType {
	return ActionType(a)
}

// ActionChannel is the delivery channel of a collection action
type ActionChannel string

const (
	ActionChannelEmail ActionChannel = "EMAIL"
	ActionChannelNone  ActionChannel = "NONE"
)

// ActionStatus is the lifecycle status of a collection action record
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "PENDING"
	ActionStatusSent      ActionStatus = "SENT"
	ActionStatusCompleted ActionStatus = "COMPLETED"
	ActionStatusScheduled ActionStatus = "SCHEDULED"
	ActionStatusFailed    ActionStatus = "FAILED"
)

// IsTerminal returns true once the action has reached its final state
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusSent || s == ActionStatusCompleted ||
		s == ActionStatusScheduled || s == ActionStatusFailed
}

// ActionMetadata carries action-specific payload (e.g. payment plan id),
// stored as JSONB
type ActionMetadata map[string]string

// Value implements driver.Valuer for GORM to store as JSONB
func (m ActionMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (m *ActionMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ActionMetadata{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan ActionMetadata: unsupported type")
	}
	if len(bytes) == 0 {
		*m = ActionMetadata{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// CollectionAction is the audit record of one executed effect against one
// invoice. It is created once per decision and updated in place as its own
// execution progresses from PENDING to a terminal state; runs never reuse
// records, so two runs against the same invoice leave two rows.
type CollectionAction struct {
	shared.TenantAggregateRoot
	InvoiceID      uuid.UUID      `json:"invoice_id"`
	ExecutionLogID uuid.UUID      `json:"execution_log_id"`
	ActionType     ActionType     `json:"action_type"`
	Channel        ActionChannel  `json:"channel"`
	Status         ActionStatus   `json:"status"`
	Recipient      string         `json:"recipient,omitempty"`
	EmailSubject   string         `json:"email_subject,omitempty"`
	EmailBody      string         `json:"email_body,omitempty"`
	Reasoning      string         `json:"reasoning"`
	ErrorDetail    string         `json:"error_detail,omitempty"`
	Metadata       ActionMetadata `json:"metadata,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	ExecutedAt     *time.Time     `json:"executed_at,omitempty"`
}

// NewCollectionAction creates a pending audit record for one decision
func NewCollectionAction(tenantID, invoiceID, logID uuid.UUID, actionType ActionType, channel ActionChannel, reasoning string) *CollectionAction {
	return &CollectionAction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceID:           invoiceID,
		ExecutionLogID:      logID,
		ActionType:          actionType,
		Channel:             channel,
		Status:              ActionStatusPending,
		Reasoning:           reasoning,
		Metadata:            ActionMetadata{},
	}
}

// WithEmail attaches the rendered message and its recipient
func (a *CollectionAction) WithEmail(recipient, subject, body string) *CollectionAction {
	a.Recipient = recipient
	a.EmailSubject = subject
	a.EmailBody = body
	return a
}

// WithMetadata records an action-specific key/value pair
func (a *CollectionAction) WithMetadata(key, value string) *CollectionAction {
	if a.Metadata == nil {
		a.Metadata = ActionMetadata{}
	}
	a.Metadata[key] = value
	return a
}

// MarkSent records a successful notification delivery
func (a *CollectionAction) MarkSent(now time.Time) {
	a.Status = ActionStatusSent
	a.SentAt = &now
	a.ExecutedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
}

// MarkCompleted records a successful non-delivery effect
func (a *CollectionAction) MarkCompleted(now time.Time) {
	a.Status = ActionStatusCompleted
	a.ExecutedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
}

// MarkScheduled records a deferred effect (WAIT) with its target date
func (a *CollectionAction) MarkScheduled(now, scheduledFor time.Time) {
	a.Status = ActionStatusScheduled
	a.ScheduledAt = &scheduledFor
	a.ExecutedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
}

// MarkFailed records a delivery or execution failure with the channel's error
func (a *CollectionAction) MarkFailed(now time.Time, detail string) {
	a.Status = ActionStatusFailed
	a.ErrorDetail = detail
	a.ExecutedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
}
