package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/ledgerly/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// collectibleStatuses are the statuses a collection run may act on
var collectibleStatuses = []collection.InvoiceStatus{
	collection.InvoiceStatusSent,
	collection.InvoiceStatusOverdue,
	collection.InvoiceStatusPartial,
}

// GormInvoiceRepository implements collection.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID for a specific tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*collection.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindEligible returns up to limit collectible invoices needing attention,
// oldest due date first. An invoice qualifies when it was never followed up
// and is past due, when its last follow-up is older than the staleness
// window, or when its next action date falls on or before today.
func (r *GormInvoiceRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]collection.Invoice, error) {
	staleCutoff := now.Add(-collection.FollowUpStalenessWindow)
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, 0, now.Location())

	var invoiceModels []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, collectibleStatuses).
		Where(
			r.db.Where("last_follow_up_at IS NULL AND due_date < ?", now).
				Or("last_follow_up_at IS NOT NULL AND last_follow_up_at < ?", staleCutoff).
				Or("next_action_date IS NOT NULL AND next_action_date <= ?", endOfDay),
		).
		Order("due_date ASC").
		Limit(limit).
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]collection.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByClientEmail returns every invoice of the tenant for one client
func (r *GormInvoiceRepository) FindByClientEmail(ctx context.Context, tenantID uuid.UUID, clientEmail string) ([]collection.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_email = ?", tenantID, clientEmail).
		Order("issue_date ASC").
		Find(&invoiceModels).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]collection.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindTenantsWithCollectibleInvoices returns the tenants the daily scheduler
// should run for: those holding at least one invoice in a collectible status
func (r *GormInvoiceRepository) FindTenantsWithCollectibleInvoices(ctx context.Context) ([]uuid.UUID, error) {
	var tenantIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ?", collectibleStatuses).
		Distinct("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, err
	}
	return tenantIDs, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *collection.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *collection.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ collection.InvoiceRepository = (*GormInvoiceRepository)(nil)
