package collection

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HistoryAnalyzer computes or retrieves-from-cache a client's payment
// reliability profile. The cache is purely a performance optimization: a
// failed cache write degrades latency, never correctness.
type HistoryAnalyzer struct {
	invoices collection.InvoiceRepository
	cache    collection.ReliabilityCache
	logger   *zap.Logger
}

// NewHistoryAnalyzer creates a new HistoryAnalyzer
func NewHistoryAnalyzer(
	invoices collection.InvoiceRepository,
	cache collection.ReliabilityCache,
	logger *zap.Logger,
) *HistoryAnalyzer {
	return &HistoryAnalyzer{
		invoices: invoices,
		cache:    cache,
		logger:   logger,
	}
}

// Analyze returns the client's reliability profile. A client without an
// email gets the neutral default profile so the invoice stays processable
// and is routed toward manual review downstream.
func (a *HistoryAnalyzer) Analyze(ctx context.Context, tenantID uuid.UUID, clientEmail string) (collection.ClientHistoryProfile, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collector", "analyze_history")
	defer span.End()

	if clientEmail == "" {
		telemetry.SetAttribute(span, "profile_source", "neutral")
		return collection.NeutralProfile(), nil
	}

	key := collection.HistoryCacheKey(tenantID, clientEmail)

	if cached, hit, err := a.cache.Get(ctx, key); err != nil {
		a.logger.Warn("Reliability cache read failed",
			zap.String("key", key),
			zap.Error(err))
	} else if hit {
		var profile collection.ClientHistoryProfile
		if err := json.Unmarshal([]byte(cached), &profile); err == nil {
			telemetry.SetAttribute(span, "profile_source", "cache")
			return profile, nil
		}
		// A corrupt entry is treated as a miss and recomputed
		a.logger.Warn("Discarding unparsable cache entry", zap.String("key", key))
	}

	invoices, err := a.invoices.FindByClientEmail(ctx, tenantID, clientEmail)
	if err != nil {
		telemetry.RecordError(span, err)
		return collection.ClientHistoryProfile{}, err
	}

	profile := computeProfile(invoices, time.Now())
	telemetry.SetAttributes(span,
		"profile_source", "repository",
		"total_invoices", profile.TotalInvoices,
		"reliability_score", profile.ReliabilityScore,
	)

	if payload, err := json.Marshal(profile); err == nil {
		if err := a.cache.Set(ctx, key, string(payload), collection.HistoryCacheTTL); err != nil {
			a.logger.Warn("Reliability cache write failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	return profile, nil
}

// computeProfile aggregates a client's invoices into a reliability profile.
// An empty history yields the neutral profile (score 1.0).
func computeProfile(invoices []collection.Invoice, now time.Time) collection.ClientHistoryProfile {
	profile := collection.ClientHistoryProfile{
		TotalInvoices:    len(invoices),
		ReliabilityScore: 1.0,
		OverdueAmount:    decimal.Zero,
	}
	if len(invoices) == 0 {
		return profile
	}

	var daysToPayment float64
	for i := range invoices {
		inv := &invoices[i]
		if inv.Status == collection.InvoiceStatusPaid {
			profile.TotalPaid++
			if !inv.UpdatedAt.After(inv.DueDate) {
				profile.PaidOnTime++
			}
			daysToPayment += inv.UpdatedAt.Sub(inv.IssueDate).Hours() / 24
		}
		if inv.IsOverdue(now) {
			profile.OverdueCount++
			profile.OverdueAmount = profile.OverdueAmount.Add(inv.OutstandingAmount())
		}
	}

	if profile.TotalPaid > 0 {
		profile.AvgDaysToPayment = daysToPayment / float64(profile.TotalPaid)
	}
	profile.ReliabilityScore = float64(profile.PaidOnTime) / float64(profile.TotalInvoices)

	return profile
}
