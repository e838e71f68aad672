package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentPlanRepository implements collection.PaymentPlanRepository using GORM
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewGormPaymentPlanRepository creates a new GormPaymentPlanRepository
func NewGormPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// Create inserts a new payment plan proposal
func (r *GormPaymentPlanRepository) Create(ctx context.Context, plan *collection.PaymentPlan) error {
	model := models.PaymentPlanModelFromDomain(plan)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByInvoice returns every plan proposed against the invoice, newest first
func (r *GormPaymentPlanRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collection.PaymentPlan, error) {
	var planModels []models.PaymentPlanModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		Find(&planModels).Error
	if err != nil {
		return nil, err
	}

	plans := make([]collection.PaymentPlan, len(planModels))
	for i, model := range planModels {
		plans[i] = *model.ToDomain()
	}
	return plans, nil
}

var _ collection.PaymentPlanRepository = (*GormPaymentPlanRepository)(nil)
