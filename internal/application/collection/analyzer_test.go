package collection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func historyInvoice(tenantID uuid.UUID, status collection.InvoiceStatus, issued, due, updated time.Time, total, paid int64) collection.Invoice {
	inv := collection.Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ClientEmail:         "billing@acme.test",
		TotalAmount:         decimal.NewFromInt(total),
		PaidAmount:          decimal.NewFromInt(paid),
		IssueDate:           issued,
		DueDate:             due,
		Status:              status,
	}
	inv.UpdatedAt = updated
	return inv
}

func TestHistoryAnalyzer_Analyze_EmptyEmailReturnsNeutral(t *testing.T) {
	invoices := new(MockInvoiceRepository)
	cache := new(MockReliabilityCache)
	analyzer := NewHistoryAnalyzer(invoices, cache, zap.NewNop())

	profile, err := analyzer.Analyze(context.Background(), uuid.New(), "")
	require.NoError(t, err)

	assert.Equal(t, collection.NeutralProfile(), profile)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	invoices.AssertNotCalled(t, "FindByClientEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestHistoryAnalyzer_Analyze_CacheHitSkipsRepository(t *testing.T) {
	tenantID := uuid.New()
	cached := collection.ClientHistoryProfile{
		TotalInvoices:    12,
		TotalPaid:        11,
		PaidOnTime:       10,
		ReliabilityScore: 0.83,
		OverdueAmount:    decimal.Zero,
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	invoices := new(MockInvoiceRepository)
	cache := new(MockReliabilityCache)
	cache.On("Get", mock.Anything, collection.HistoryCacheKey(tenantID, "billing@acme.test")).
		Return(string(payload), true, nil)

	analyzer := NewHistoryAnalyzer(invoices, cache, zap.NewNop())
	profile, err := analyzer.Analyze(context.Background(), tenantID, "billing@acme.test")
	require.NoError(t, err)

	assert.Equal(t, 12, profile.TotalInvoices)
	assert.InDelta(t, 0.83, profile.ReliabilityScore, 0.001)
	// A hit means zero repository aggregation
	invoices.AssertNotCalled(t, "FindByClientEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestHistoryAnalyzer_Analyze_CacheMissComputesAndStores(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	history := []collection.Invoice{
		// Paid 10 days after issue, before due date
		historyInvoice(tenantID, collection.InvoiceStatusPaid,
			now.AddDate(0, 0, -40), now.AddDate(0, 0, -10), now.AddDate(0, 0, -30), 500, 500),
		// Paid late
		historyInvoice(tenantID, collection.InvoiceStatusPaid,
			now.AddDate(0, 0, -60), now.AddDate(0, 0, -30), now.AddDate(0, 0, -20), 300, 300),
		// Still overdue
		historyInvoice(tenantID, collection.InvoiceStatusOverdue,
			now.AddDate(0, 0, -50), now.AddDate(0, 0, -20), now, 400, 100),
	}

	invoices := new(MockInvoiceRepository)
	invoices.On("FindByClientEmail", mock.Anything, tenantID, "billing@acme.test").Return(history, nil)

	cache := new(MockReliabilityCache)
	cache.On("Get", mock.Anything, mock.Anything).Return("", false, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, collection.HistoryCacheTTL).Return(nil)

	analyzer := NewHistoryAnalyzer(invoices, cache, zap.NewNop())
	profile, err := analyzer.Analyze(context.Background(), tenantID, "billing@acme.test")
	require.NoError(t, err)

	assert.Equal(t, 3, profile.TotalInvoices)
	assert.Equal(t, 2, profile.TotalPaid)
	assert.Equal(t, 1, profile.PaidOnTime)
	assert.InDelta(t, 1.0/3.0, profile.ReliabilityScore, 0.001)
	assert.Equal(t, 1, profile.OverdueCount)
	assert.True(t, profile.OverdueAmount.Equal(decimal.NewFromInt(300)))
	// (10 + 40) / 2 days between issue and payment
	assert.InDelta(t, 25, profile.AvgDaysToPayment, 0.1)

	cache.AssertCalled(t, "Set", mock.Anything,
		collection.HistoryCacheKey(tenantID, "billing@acme.test"), mock.Anything, collection.HistoryCacheTTL)
}

func TestHistoryAnalyzer_Analyze_CacheFailuresAreNonFatal(t *testing.T) {
	tenantID := uuid.New()

	invoices := new(MockInvoiceRepository)
	invoices.On("FindByClientEmail", mock.Anything, tenantID, "billing@acme.test").
		Return([]collection.Invoice{}, nil)

	cache := new(MockReliabilityCache)
	cache.On("Get", mock.Anything, mock.Anything).Return("", false, errors.New("connection refused"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	analyzer := NewHistoryAnalyzer(invoices, cache, zap.NewNop())
	profile, err := analyzer.Analyze(context.Background(), tenantID, "billing@acme.test")
	require.NoError(t, err)

	// No history yields the neutral score
	assert.Equal(t, 1.0, profile.ReliabilityScore)
	assert.Equal(t, 0, profile.TotalInvoices)
}

func TestHistoryAnalyzer_Analyze_CorruptCacheEntryRecomputes(t *testing.T) {
	tenantID := uuid.New()

	invoices := new(MockInvoiceRepository)
	invoices.On("FindByClientEmail", mock.Anything, tenantID, "billing@acme.test").
		Return([]collection.Invoice{}, nil)

	cache := new(MockReliabilityCache)
	cache.On("Get", mock.Anything, mock.Anything).Return("{not json", true, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	analyzer := NewHistoryAnalyzer(invoices, cache, zap.NewNop())
	_, err := analyzer.Analyze(context.Background(), tenantID, "billing@acme.test")
	require.NoError(t, err)

	invoices.AssertCalled(t, "FindByClientEmail", mock.Anything, tenantID, "billing@acme.test")
}

func TestComputeProfile_EmptyHistory(t *testing.T) {
	profile := computeProfile(nil, time.Now())
	assert.Equal(t, 0, profile.TotalInvoices)
	assert.Equal(t, 1.0, profile.ReliabilityScore)
}
