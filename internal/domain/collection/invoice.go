package collection

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusDisputed  InvoiceStatus = "DISPUTED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue,
		InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusDisputed,
		InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// IsCollectible returns true if the collector may act on an invoice in this
// status. Disputed invoices are parked for human review and draft invoices
// were never sent, so neither is collectible.
func (s InvoiceStatus) IsCollectible() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusOverdue || s == InvoiceStatusPartial
}

// EscalationLevel is the ordered severity tag on an invoice's collection treatment
type EscalationLevel string

const (
	EscalationNone             EscalationLevel = "NONE"
	EscalationFriendlyReminder EscalationLevel = "FRIENDLY_REMINDER"
	EscalationFirmReminder     EscalationLevel = "FIRM_REMINDER"
	EscalationUrgentNotice     EscalationLevel = "URGENT_NOTICE"
	EscalationFinalNotice      EscalationLevel = "FINAL_NOTICE"
	EscalationLegalWarning     EscalationLevel = "LEGAL_WARNING"
)

var escalationRanks = map[EscalationLevel]int{
	EscalationNone:             0,
	EscalationFriendlyReminder: 1,
	EscalationFirmReminder:     2,
	EscalationUrgentNotice:     3,
	EscalationFinalNotice:      4,
	EscalationLegalWarning:     5,
}

// IsValid checks if the level is a known escalation level
func (l EscalationLevel) IsValid() bool {
	_, ok := escalationRanks[l]
	return ok
}

// Rank returns the ordinal position of the level (NONE = 0)
func (l EscalationLevel) Rank() int {
	return escalationRanks[l]
}

// Below returns true if this level is less severe than other
func (l EscalationLevel) Below(other EscalationLevel) bool {
	return l.Rank() < other.Rank()
}

// String returns the string representation of EscalationLevel
func (l EscalationLevel) String() string {
	return string(l)
}

const (
	// FollowUpStalenessWindow is how long a follow-up shields an invoice
	// from being picked up again by a collection run.
	FollowUpStalenessWindow = 72 * time.Hour

	// DefaultNextActionDelay is the scheduling gap applied after a
	// reminder or escalation is sent.
	DefaultNextActionDelay = 72 * time.Hour
)

// Invoice represents an invoice aggregate root tracked by the collector.
// The collector mutates its collection-related fields only; invoices are
// created and deleted elsewhere in the application.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber   string          `json:"invoice_number"`
	ClientID        uuid.UUID       `json:"client_id"`
	ClientName      string          `json:"client_name"`
	ClientEmail     string          `json:"client_email"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         time.Time       `json:"due_date"`
	Status          InvoiceStatus   `json:"status"`
	EscalationLevel EscalationLevel `json:"escalation_level"`
	FollowUpCount   int             `json:"follow_up_count"`
	LastFollowUpAt  *time.Time      `json:"last_follow_up_at"`
	NextActionDate  *time.Time      `json:"next_action_date"`
	AgentNotes      string          `json:"agent_notes"`
}

// OutstandingAmount returns the unpaid remainder of the invoice
func (i *Invoice) OutstandingAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// IsOverdue returns true if the invoice is past due and not in a terminal state
func (i *Invoice) IsOverdue(now time.Time) bool {
	if i.Status.IsTerminal() {
		return false
	}
	return now.After(i.DueDate)
}

// DaysOverdue returns the number of days past due, rounded up, clamped to >= 0
func (i *Invoice) DaysOverdue(now time.Time) int {
	if !now.After(i.DueDate) {
		return 0
	}
	days := int(math.Ceil(now.Sub(i.DueDate).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// IsEligibleForCollection reports whether a run should pick up this invoice:
// it must be in a collectible status and either never followed up while past
// due, followed up longer than the staleness window ago, or explicitly
// scheduled for action today.
func (i *Invoice) IsEligibleForCollection(now time.Time) bool {
	if !i.Status.IsCollectible() {
		return false
	}
	if i.LastFollowUpAt == nil {
		if now.After(i.DueDate) {
			return true
		}
	} else if now.Sub(*i.LastFollowUpAt) > FollowUpStalenessWindow {
		return true
	}
	if i.NextActionDate != nil && !i.NextActionDate.After(endOfDay(now)) {
		return true
	}
	return false
}

// RecalculateStatus derives the invoice status from amounts and due date.
// Fully paid wins, then overdue, then partially paid, then sent. The overdue
// check runs before the partial check so a partially paid invoice past its
// due date still reads OVERDUE.
func (i *Invoice) RecalculateStatus(now time.Time) {
	switch {
	case i.OutstandingAmount().LessThanOrEqual(decimal.Zero):
		i.Status = InvoiceStatusPaid
	case now.After(i.DueDate):
		i.Status = InvoiceStatusOverdue
	case i.PaidAmount.GreaterThan(decimal.Zero):
		i.Status = InvoiceStatusPartial
	default:
		i.Status = InvoiceStatusSent
	}
}

// RecordFollowUp applies the bookkeeping of a sent reminder or escalation:
// follow-up counters, escalation level, next action date and agent notes.
// The level is applied as proposed even when it is lower than the current
// one; a downgrade is a deliberate reset (e.g. the client partially caught
// up), not a bug, and the audit trail preserves the provider's intent.
func (i *Invoice) RecordFollowUp(now time.Time, level EscalationLevel, notes string) {
	next := now.Add(DefaultNextActionDelay)
	i.LastFollowUpAt = &now
	i.FollowUpCount++
	if level.IsValid() {
		i.EscalationLevel = level
	}
	i.NextActionDate = &next
	i.AgentNotes = notes
	i.RecalculateStatus(now)
	i.UpdatedAt = now
	i.IncrementVersion()
}

// RecordPaymentPlanOffer updates follow-up counters and notes after a payment
// plan proposal. The escalation level is intentionally left unchanged: a plan
// is an alternative to escalation, not a step of it.
func (i *Invoice) RecordPaymentPlanOffer(now time.Time, notes string) {
	next := now.Add(DefaultNextActionDelay)
	i.LastFollowUpAt = &now
	i.FollowUpCount++
	i.NextActionDate = &next
	i.AgentNotes = notes
	i.RecalculateStatus(now)
	i.UpdatedAt = now
	i.IncrementVersion()
}

// ScheduleWait pushes the next action date out by the given number of days
// without sending anything
func (i *Invoice) ScheduleWait(now time.Time, waitDays int, notes string) {
	if waitDays <= 0 {
		waitDays = 3
	}
	next := now.AddDate(0, 0, waitDays)
	i.NextActionDate = &next
	i.AgentNotes = notes
	i.UpdatedAt = now
	i.IncrementVersion()
}

// FlagForReview parks the invoice for a human: status moves to DISPUTED and
// the notes carry the review marker
func (i *Invoice) FlagForReview(now time.Time, notes string) {
	i.Status = InvoiceStatusDisputed
	i.AgentNotes = notes
	i.UpdatedAt = now
	i.IncrementVersion()
}

// HasClientEmail returns true if the invoice carries a deliverable address
func (i *Invoice) HasClientEmail() bool {
	return i.ClientEmail != ""
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
