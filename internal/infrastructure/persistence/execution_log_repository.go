package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/ledgerly/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormExecutionLogRepository implements collection.ExecutionLogRepository using GORM
type GormExecutionLogRepository struct {
	db *gorm.DB
}

// NewGormExecutionLogRepository creates a new GormExecutionLogRepository
func NewGormExecutionLogRepository(db *gorm.DB) *GormExecutionLogRepository {
	return &GormExecutionLogRepository{db: db}
}

// Create inserts a new run log
func (r *GormExecutionLogRepository) Create(ctx context.Context, log *collection.ExecutionLog) error {
	model := models.ExecutionLogModelFromDomain(log)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists the finalized run log
func (r *GormExecutionLogRepository) Update(ctx context.Context, log *collection.ExecutionLog) error {
	model := models.ExecutionLogModelFromDomain(log)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByIDForTenant finds a run log by ID for a specific tenant
func (r *GormExecutionLogRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*collection.ExecutionLog, error) {
	var model models.ExecutionLogModel
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

// FindAllForTenant returns the tenant's run logs with pagination and ordering
func (r *GormExecutionLogRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]collection.ExecutionLog, error) {
	var logModels []models.ExecutionLogModel
	query := r.db.WithContext(ctx).Model(&models.ExecutionLogModel{}).
		Where("tenant_id = ?", tenantID).
		Order(orderClause(filter))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize).Offset((filter.Page - 1) * filter.PageSize)
	}
	if err := query.Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]collection.ExecutionLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

// CountForTenant counts the tenant's run logs
func (r *GormExecutionLogRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ExecutionLogModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// orderClause builds a safe ORDER BY clause from the filter, falling back to
// started_at DESC for unknown columns
func orderClause(filter shared.Filter) string {
	column := "started_at"
	switch filter.OrderBy {
	case "created_at", "started_at", "status", "duration_ms":
		column = filter.OrderBy
	}
	direction := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s", column, direction)
}

var _ collection.ExecutionLogRepository = (*GormExecutionLogRepository)(nil)
