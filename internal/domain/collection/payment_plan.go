package collection

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentPlanStatus is the proposal status of a payment plan
type PaymentPlanStatus string

const (
	// PaymentPlanStatusProposed is the only status the collector assigns.
	// Acceptance and installment tracking are handled elsewhere.
	PaymentPlanStatusProposed PaymentPlanStatus = "PROPOSED"
)

// PaymentPlanInstallments is the fixed number of installments offered
const PaymentPlanInstallments = 4

// PaymentPlan is an installment proposal created by the OFFER_PAYMENT_PLAN
// action. The collector only ever creates plans in PROPOSED state.
type PaymentPlan struct {
	shared.TenantAggregateRoot
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	InstallmentCount  int               `json:"installment_count"`
	InstallmentAmount decimal.Decimal   `json:"installment_amount"`
	StartDate         time.Time         `json:"start_date"`
	NextDueDate       time.Time         `json:"next_due_date"`
	Status            PaymentPlanStatus `json:"status"`
}

// NewPaymentPlan proposes a plan splitting the total into four equal
// installments, with the first due one calendar month after start
func NewPaymentPlan(tenantID, invoiceID uuid.UUID, total decimal.Decimal, start time.Time) (*PaymentPlan, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment plan total must be positive")
	}
	return &PaymentPlan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceID:           invoiceID,
		TotalAmount:         total,
		InstallmentCount:    PaymentPlanInstallments,
		InstallmentAmount:   total.Div(decimal.NewFromInt(PaymentPlanInstallments)),
		StartDate:           start,
		NextDueDate:         start.AddDate(0, 1, 0),
		Status:              PaymentPlanStatusProposed,
	}, nil
}
