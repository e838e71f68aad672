package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCollectionActionRepository implements collection.CollectionActionRepository using GORM
type GormCollectionActionRepository struct {
	db *gorm.DB
}

// NewGormCollectionActionRepository creates a new GormCollectionActionRepository
func NewGormCollectionActionRepository(db *gorm.DB) *GormCollectionActionRepository {
	return &GormCollectionActionRepository{db: db}
}

// Create inserts a new action record
func (r *GormCollectionActionRepository) Create(ctx context.Context, action *collection.CollectionAction) error {
	model := models.CollectionActionModelFromDomain(action)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists status transitions of an existing record
func (r *GormCollectionActionRepository) Update(ctx context.Context, action *collection.CollectionAction) error {
	model := models.CollectionActionModelFromDomain(action)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByInvoice returns the invoice's full audit trail, newest first
func (r *GormCollectionActionRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collection.CollectionAction, error) {
	var actionModels []models.CollectionActionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		Find(&actionModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainActions(actionModels), nil
}

// FindRecentByInvoice returns the newest actions first, capped at limit
func (r *GormCollectionActionRepository) FindRecentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, limit int) ([]collection.CollectionAction, error) {
	var actionModels []models.CollectionActionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&actionModels).Error
	if err != nil {
		return nil, err
	}
	return toDomainActions(actionModels), nil
}

func toDomainActions(actionModels []models.CollectionActionModel) []collection.CollectionAction {
	actions := make([]collection.CollectionAction, len(actionModels))
	for i, model := range actionModels {
		actions[i] = *model.ToDomain()
	}
	return actions
}

var _ collection.CollectionActionRepository = (*GormCollectionActionRepository)(nil)
