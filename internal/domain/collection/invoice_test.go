package collection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestInvoice(due time.Time) *Invoice {
	return &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(uuid.New()),
		InvoiceNumber:       "INV-20260801-00001",
		ClientID:            uuid.New(),
		ClientName:          "Acme Ltd",
		ClientEmail:         "billing@acme.test",
		TotalAmount:         decimal.NewFromInt(1000),
		PaidAmount:          decimal.Zero,
		IssueDate:           due.AddDate(0, 0, -30),
		DueDate:             due,
		Status:              InvoiceStatusSent,
		EscalationLevel:     EscalationNone,
	}
}

func TestInvoice_DaysOverdue(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"not yet due", now.AddDate(0, 0, 5), 0},
		{"due exactly now", now, 0},
		{"half a day late rounds up", now.Add(-12 * time.Hour), 1},
		{"five days late", now.AddDate(0, 0, -5), 5},
		{"forty days late", now.AddDate(0, 0, -40), 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newTestInvoice(tt.due)
			assert.Equal(t, tt.want, inv.DaysOverdue(now))
		})
	}
}

func TestInvoice_IsEligibleForCollection(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	t.Run("overdue and never followed up", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -3))
		assert.True(t, inv.IsEligibleForCollection(now))
	})

	t.Run("not due and never followed up", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, 10))
		assert.False(t, inv.IsEligibleForCollection(now))
	})

	t.Run("recent follow-up shields the invoice", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -10))
		last := now.Add(-24 * time.Hour)
		inv.LastFollowUpAt = &last
		assert.False(t, inv.IsEligibleForCollection(now))
	})

	t.Run("stale follow-up makes it eligible again", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -10))
		last := now.Add(-4 * 24 * time.Hour)
		inv.LastFollowUpAt = &last
		assert.True(t, inv.IsEligibleForCollection(now))
	})

	t.Run("scheduled for today overrides recent follow-up", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, 30))
		last := now.Add(-2 * time.Hour)
		inv.LastFollowUpAt = &last
		next := now.Add(3 * time.Hour)
		inv.NextActionDate = &next
		assert.True(t, inv.IsEligibleForCollection(now))
	})

	t.Run("terminal and parked statuses are excluded", func(t *testing.T) {
		for _, status := range []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusDisputed, InvoiceStatusDraft} {
			inv := newTestInvoice(now.AddDate(0, 0, -10))
			inv.Status = status
			assert.False(t, inv.IsEligibleForCollection(now), "status %s", status)
		}
	})
}

func TestInvoice_RecalculateStatus(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	t.Run("fully paid wins", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -5))
		inv.PaidAmount = inv.TotalAmount
		inv.RecalculateStatus(now)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
	})

	t.Run("overdue wins over partial", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -5))
		inv.PaidAmount = decimal.NewFromInt(400)
		inv.RecalculateStatus(now)
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	})

	t.Run("partial before due date", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, 5))
		inv.PaidAmount = decimal.NewFromInt(400)
		inv.RecalculateStatus(now)
		assert.Equal(t, InvoiceStatusPartial, inv.Status)
	})

	t.Run("overdue is deterministic regardless of prior status", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -40))
		inv.Status = InvoiceStatusDisputed
		inv.RecalculateStatus(now)
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	})
}

func TestInvoice_RecordFollowUp(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	inv := newTestInvoice(now.AddDate(0, 0, -5))
	version := inv.Version

	inv.RecordFollowUp(now, EscalationFirmReminder, "second notice")

	assert.Equal(t, 1, inv.FollowUpCount)
	assert.Equal(t, EscalationFirmReminder, inv.EscalationLevel)
	assert.Equal(t, now, *inv.LastFollowUpAt)
	assert.Equal(t, now.Add(DefaultNextActionDelay), *inv.NextActionDate)
	assert.Equal(t, "second notice", inv.AgentNotes)
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	assert.Equal(t, version+1, inv.Version)
}

func TestInvoice_RecordFollowUp_AllowsEscalationDowngrade(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	inv := newTestInvoice(now.AddDate(0, 0, -5))
	inv.EscalationLevel = EscalationUrgentNotice

	inv.RecordFollowUp(now, EscalationFriendlyReminder, "client caught up partially")

	assert.Equal(t, EscalationFriendlyReminder, inv.EscalationLevel)
}

func TestInvoice_RecordPaymentPlanOffer_KeepsEscalationLevel(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	inv := newTestInvoice(now.AddDate(0, 0, -10))
	inv.EscalationLevel = EscalationUrgentNotice

	inv.RecordPaymentPlanOffer(now, "offered 4 installments")

	assert.Equal(t, EscalationUrgentNotice, inv.EscalationLevel)
	assert.Equal(t, 1, inv.FollowUpCount)
}

func TestInvoice_ScheduleWait(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	t.Run("explicit wait days", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -2))
		inv.ScheduleWait(now, 7, "invoice only slightly late")
		assert.Equal(t, now.AddDate(0, 0, 7), *inv.NextActionDate)
	})

	t.Run("non-positive wait defaults to three days", func(t *testing.T) {
		inv := newTestInvoice(now.AddDate(0, 0, -2))
		inv.ScheduleWait(now, 0, "")
		assert.Equal(t, now.AddDate(0, 0, 3), *inv.NextActionDate)
	})
}

func TestInvoice_FlagForReview(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	inv := newTestInvoice(now.AddDate(0, 0, -5))

	inv.FlagForReview(now, "[REVIEW] missing client email")

	assert.Equal(t, InvoiceStatusDisputed, inv.Status)
	assert.Equal(t, "[REVIEW] missing client email", inv.AgentNotes)
	assert.Zero(t, inv.FollowUpCount)
}

func TestEscalationLevel_Ordering(t *testing.T) {
	assert.True(t, EscalationNone.Below(EscalationFriendlyReminder))
	assert.True(t, EscalationFinalNotice.Below(EscalationLegalWarning))
	assert.False(t, EscalationLegalWarning.Below(EscalationUrgentNotice))
	assert.False(t, EscalationLevel("BOGUS").IsValid())
}
