package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
)

// InvoiceRepository provides read/write access to invoices for the collector
type InvoiceRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindEligible returns up to limit invoices matching the collection
	// eligibility predicate, ordered by due date ascending so the oldest
	// overdue invoices are handled first.
	FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]Invoice, error)

	// FindByClientEmail returns every invoice of the tenant for one client,
	// used by the history analyzer's aggregation.
	FindByClientEmail(ctx context.Context, tenantID uuid.UUID, clientEmail string) ([]Invoice, error)

	Save(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// CollectionActionRepository persists the audit trail of executed effects
type CollectionActionRepository interface {
	Create(ctx context.Context, action *CollectionAction) error
	Update(ctx context.Context, action *CollectionAction) error
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]CollectionAction, error)

	// FindRecentByInvoice returns the newest actions first, capped at limit,
	// for rendering prior-action context into the decision prompt.
	FindRecentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, limit int) ([]CollectionAction, error)
}

// PaymentPlanRepository persists payment plan proposals
type PaymentPlanRepository interface {
	Create(ctx context.Context, plan *PaymentPlan) error
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentPlan, error)
}

// ExecutionLogRepository persists collection run logs
type ExecutionLogRepository interface {
	Create(ctx context.Context, log *ExecutionLog) error
	Update(ctx context.Context, log *ExecutionLog) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ExecutionLog, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ExecutionLog, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
