package collection

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryCacheTTL bounds how long a cached reliability profile stays fresh
const HistoryCacheTTL = time.Hour

// ClientHistoryProfile is the derived payment-history profile of one client.
// It lives only in the reliability cache; a cache miss triggers recomputation
// from the invoice repository.
type ClientHistoryProfile struct {
	TotalInvoices    int             `json:"total_invoices"`
	TotalPaid        int             `json:"total_paid"`
	PaidOnTime       int             `json:"paid_on_time"`
	AvgDaysToPayment float64         `json:"avg_days_to_payment"`
	ReliabilityScore float64         `json:"reliability_score"`
	OverdueCount     int             `json:"overdue_count"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
}

// NeutralProfile is the profile used when a client has no email or no
// history: full reliability, zero history. Invoices without a client email
// remain processable and are routed toward manual review downstream.
func NeutralProfile() ClientHistoryProfile {
	return ClientHistoryProfile{
		ReliabilityScore: 1.0,
		OverdueAmount:    decimal.Zero,
	}
}

// HistoryCacheKey builds the cache key for one tenant/client pair
func HistoryCacheKey(tenantID uuid.UUID, clientEmail string) string {
	return fmt.Sprintf("client_history:%s:%s", tenantID, clientEmail)
}

// Reliable reports whether the client pays on time often enough to merit
// softer treatment in the escalation ladder
func (p ClientHistoryProfile) Reliable() bool {
	return p.ReliabilityScore >= 0.8
}
