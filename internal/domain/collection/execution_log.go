package collection

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/shared"
)

// RunStatus is the lifecycle status of a collection run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ExecutionLog is the persistent record of one collector run. It is created
// in RUNNING state before the batch loads and finalized exactly once, on the
// success or the failure path.
type ExecutionLog struct {
	shared.TenantAggregateRoot
	Status            RunStatus `json:"status"`
	InvoicesProcessed int       `json:"invoices_processed"`
	ActionsCreated    int       `json:"actions_created"`
	EmailsSent        int       `json:"emails_sent"`
	Errors            int       `json:"errors"`
	DurationMs        int64     `json:"duration_ms"`
	Summary           string    `json:"summary"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// NewExecutionLog starts a run log in RUNNING state
func NewExecutionLog(tenantID uuid.UUID, now time.Time) *ExecutionLog {
	return &ExecutionLog{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              RunStatusRunning,
		StartedAt:           now,
	}
}

// Complete finalizes the log with the run's aggregated statistics
func (l *ExecutionLog) Complete(now time.Time, processed, actions, emails, errCount int, duration time.Duration) error {
	if l.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete run in %s status", l.Status))
	}
	l.Status = RunStatusCompleted
	l.InvoicesProcessed = processed
	l.ActionsCreated = actions
	l.EmailsSent = emails
	l.Errors = errCount
	l.DurationMs = duration.Milliseconds()
	l.Summary = fmt.Sprintf("Processed %d invoices: %d actions, %d emails sent, %d errors",
		processed, actions, emails, errCount)
	l.FinishedAt = &now
	l.UpdatedAt = now
	l.IncrementVersion()
	return nil
}

// Fail finalizes the log on the fatal path (eligibility load failure)
func (l *ExecutionLog) Fail(now time.Time, cause error, duration time.Duration) error {
	if l.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail run in %s status", l.Status))
	}
	l.Status = RunStatusFailed
	l.DurationMs = duration.Milliseconds()
	l.ErrorDetail = cause.Error()
	l.Summary = "Run failed before processing any invoices"
	l.FinishedAt = &now
	l.UpdatedAt = now
	l.IncrementVersion()
	return nil
}

// IsFinalized returns true once the log has left RUNNING state
func (l *ExecutionLog) IsFinalized() bool {
	return l.Status != RunStatusRunning
}
