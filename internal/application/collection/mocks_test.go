package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockInvoiceRepository is a mock implementation of collection.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*collection.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collection.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]collection.Invoice, error) {
	args := m.Called(ctx, tenantID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByClientEmail(ctx context.Context, tenantID uuid.UUID, clientEmail string) ([]collection.Invoice, error) {
	args := m.Called(ctx, tenantID, clientEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *collection.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *collection.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

// MockActionRepository is a mock implementation of collection.CollectionActionRepository
type MockActionRepository struct {
	mock.Mock
}

func (m *MockActionRepository) Create(ctx context.Context, action *collection.CollectionAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockActionRepository) Update(ctx context.Context, action *collection.CollectionAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockActionRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collection.CollectionAction, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.CollectionAction), args.Error(1)
}

func (m *MockActionRepository) FindRecentByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, limit int) ([]collection.CollectionAction, error) {
	args := m.Called(ctx, tenantID, invoiceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.CollectionAction), args.Error(1)
}

// MockPaymentPlanRepository is a mock implementation of collection.PaymentPlanRepository
type MockPaymentPlanRepository struct {
	mock.Mock
}

func (m *MockPaymentPlanRepository) Create(ctx context.Context, plan *collection.PaymentPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPaymentPlanRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collection.PaymentPlan, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.PaymentPlan), args.Error(1)
}

// MockExecutionLogRepository is a mock implementation of collection.ExecutionLogRepository
type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) Create(ctx context.Context, log *collection.ExecutionLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockExecutionLogRepository) Update(ctx context.Context, log *collection.ExecutionLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockExecutionLogRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*collection.ExecutionLog, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collection.ExecutionLog), args.Error(1)
}

func (m *MockExecutionLogRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]collection.ExecutionLog, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]collection.ExecutionLog), args.Error(1)
}

func (m *MockExecutionLogRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDecisionProvider is a mock implementation of collection.DecisionProvider
type MockDecisionProvider struct {
	mock.Mock
}

func (m *MockDecisionProvider) Complete(ctx context.Context, req collection.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockNotificationChannel is a mock implementation of collection.NotificationChannel
type MockNotificationChannel struct {
	mock.Mock
}

func (m *MockNotificationChannel) Send(ctx context.Context, msg collection.Message) collection.SendResult {
	args := m.Called(ctx, msg)
	return args.Get(0).(collection.SendResult)
}

// MockReliabilityCache is a mock implementation of collection.ReliabilityCache
type MockReliabilityCache struct {
	mock.Mock
}

func (m *MockReliabilityCache) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockReliabilityCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// MockRunLock is a mock implementation of collection.RunLock
type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunLock) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// newTestInvoice builds an overdue invoice due daysOverdue days ago
func newTestInvoice(tenantID uuid.UUID, daysOverdue int) *collection.Invoice {
	now := time.Now()
	return &collection.Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       "INV-2025-001",
		ClientID:            uuid.New(),
		ClientName:          "Acme Corp",
		ClientEmail:         "billing@acme.test",
		TotalAmount:         decimal.NewFromInt(1000),
		PaidAmount:          decimal.Zero,
		// Offset by half a day so DaysOverdue, which rounds up and is
		// evaluated at a slightly later time.Now(), still ceils to
		// daysOverdue instead of daysOverdue+1.
		IssueDate:           now.AddDate(0, 0, -daysOverdue-30).Add(12 * time.Hour),
		DueDate:             now.AddDate(0, 0, -daysOverdue).Add(12 * time.Hour),
		Status:              collection.InvoiceStatusOverdue,
		EscalationLevel:     collection.EscalationNone,
	}
}
