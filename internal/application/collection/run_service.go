package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/ledgerly/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// MaxInvoicesPerRun caps the batch size of one collection run
	MaxInvoicesPerRun = 50

	// defaultRunLockTTL bounds how long a crashed run can block its tenant
	defaultRunLockTTL = 15 * time.Minute
)

// runLockKey returns the per-tenant mutual exclusion key
func runLockKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("collector_run:%s", tenantID)
}

// RunService orchestrates one collection run end to end: acquire the tenant
// lock, open the execution log, load the eligible batch and drive each
// invoice through analyze, decide and execute. Invoice failures are isolated;
// only a batch load failure fails the run itself.
type RunService struct {
	logs     collection.ExecutionLogRepository
	invoices collection.InvoiceRepository
	actions  collection.CollectionActionRepository
	analyzer *HistoryAnalyzer
	engine   *DecisionEngine
	executor *ActionExecutor
	lock     collection.RunLock
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewRunService creates a new RunService
func NewRunService(
	logs collection.ExecutionLogRepository,
	invoices collection.InvoiceRepository,
	actions collection.CollectionActionRepository,
	analyzer *HistoryAnalyzer,
	engine *DecisionEngine,
	executor *ActionExecutor,
	lock collection.RunLock,
	logger *zap.Logger,
) *RunService {
	return &RunService{
		logs:     logs,
		invoices: invoices,
		actions:  actions,
		analyzer: analyzer,
		engine:   engine,
		executor: executor,
		lock:     lock,
		lockTTL:  defaultRunLockTTL,
		logger:   logger,
	}
}

// WithLockTTL overrides how long the per-tenant run lock may outlive a
// crashed run
func (s *RunService) WithLockTTL(ttl time.Duration) *RunService {
	s.lockTTL = ttl
	return s
}

// Run executes one collection pass for the tenant. It returns
// shared.ErrRunInProgress when another run holds the tenant lock. Any other
// error comes from the fatal path (log creation or batch load); per-invoice
// failures are reported inside the result instead.
func (s *RunService) Run(ctx context.Context, tenantID uuid.UUID) (*RunResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collector", "run")
	defer span.End()
	telemetry.SetAttribute(span, "tenant_id", tenantID.String())

	lockKey := runLockKey(tenantID)
	acquired, err := s.lock.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, shared.ErrRunInProgress
	}
	defer func() {
		if err := s.lock.Release(ctx, lockKey); err != nil {
			s.logger.Warn("Failed to release run lock",
				zap.String("key", lockKey),
				zap.Error(err))
		}
	}()

	started := time.Now()
	log := collection.NewExecutionLog(tenantID, started)
	if err := s.logs.Create(ctx, log); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create execution log: %w", err)
	}

	state := stateLoading
	batch, err := s.invoices.FindEligible(ctx, tenantID, started, MaxInvoicesPerRun)
	if err != nil {
		cause := fmt.Errorf("failed to load eligible invoices: %w", err)
		telemetry.RecordError(span, cause)
		return s.failRun(ctx, log, started, cause)
	}
	telemetry.SetAttribute(span, "batch_size", len(batch))

	stats := ActionStats{}
	processed := 0
	var runErrors []string

	for i := range batch {
		state = stateSelecting
		invoice := &batch[i]

		delta, degraded, err := s.processInvoice(ctx, invoice, log.ID, &state)
		stats = stats.Add(delta)
		processed++
		for _, detail := range degraded {
			stats.Errors++
			runErrors = append(runErrors, fmt.Sprintf("invoice %s: %s", invoice.InvoiceNumber, detail))
		}
		if err != nil {
			stats.Errors++
			runErrors = append(runErrors, fmt.Sprintf("invoice %s: %v", invoice.InvoiceNumber, err))
			s.logger.Error("Invoice processing failed",
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.Error(err))
		}
	}
	state = stateDone

	duration := time.Since(started)
	if err := log.Complete(time.Now(), processed, stats.ActionsCreated, stats.EmailsSent, stats.Errors, duration); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.logs.Update(ctx, log); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to finalize execution log: %w", err)
	}

	s.logger.Info("Collection run completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("state", string(state)),
		zap.Int("processed", processed),
		zap.Int("actions", stats.ActionsCreated),
		zap.Int("emails", stats.EmailsSent),
		zap.Int("errors", stats.Errors),
		zap.Int64("duration_ms", duration.Milliseconds()))

	return &RunResult{
		Success: true,
		Stats: RunStats{
			Processed:    processed,
			ActionsTaken: stats.ActionsCreated,
			EmailsSent:   stats.EmailsSent,
			Errors:       stats.Errors,
		},
		Errors:     runErrors,
		DurationMs: duration.Milliseconds(),
	}, nil
}

// processInvoice drives one invoice through the analyze/decide/execute
// pipeline. A panic anywhere in the pipeline is converted into an error so a
// single bad invoice cannot take down the batch. Repository failures on the
// context-loading steps degrade the pipeline (neutral profile, no prior
// actions) instead of aborting it, but each one is reported in degraded so
// the run counts it.
func (s *RunService) processInvoice(ctx context.Context, invoice *collection.Invoice, logID uuid.UUID, state *runState) (stats ActionStats, degraded []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()

	*state = stateAnalyzing
	profile, aerr := s.analyzer.Analyze(ctx, invoice.TenantID, invoice.ClientEmail)
	if aerr != nil {
		// A profile failure falls back to neutral rather than skipping the
		// invoice; the decision engine still sees the invoice itself
		degraded = append(degraded, fmt.Sprintf("history analysis failed: %v", aerr))
		s.logger.Warn("History analysis failed, using neutral profile",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(aerr))
		profile = collection.NeutralProfile()
	}

	priorActions, perr := s.actions.FindRecentByInvoice(ctx, invoice.TenantID, invoice.ID, priorActionContextLimit)
	if perr != nil {
		degraded = append(degraded, fmt.Sprintf("failed to load prior actions: %v", perr))
		s.logger.Warn("Failed to load prior actions",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(perr))
		priorActions = nil
	}

	*state = stateDeciding
	decision := s.engine.Decide(ctx, invoice, profile, priorActions)

	*state = stateExecuting
	stats, err = s.executor.Execute(ctx, invoice, decision, logID)
	return stats, degraded, err
}

// failRun finalizes the log on the fatal path and reports the failure to the
// caller
func (s *RunService) failRun(ctx context.Context, log *collection.ExecutionLog, started time.Time, cause error) (*RunResult, error) {
	duration := time.Since(started)
	if err := log.Fail(time.Now(), cause, duration); err != nil {
		s.logger.Error("Failed to finalize execution log on failure path", zap.Error(err))
	} else if err := s.logs.Update(ctx, log); err != nil {
		s.logger.Error("Failed to persist failed execution log", zap.Error(err))
	}

	s.logger.Error("Collection run failed",
		zap.String("tenant_id", log.TenantID.String()),
		zap.Error(cause))

	return &RunResult{
		Success:    false,
		Errors:     []string{cause.Error()},
		DurationMs: duration.Milliseconds(),
	}, cause
}

// GetRun returns one execution log scoped to the tenant
func (s *RunService) GetRun(ctx context.Context, tenantID, id uuid.UUID) (*collection.ExecutionLog, error) {
	return s.logs.FindByIDForTenant(ctx, tenantID, id)
}

// ListRuns returns the tenant's execution logs, newest first, with the total
// count for pagination
func (s *RunService) ListRuns(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[collection.ExecutionLog], error) {
	logs, err := s.logs.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.logs.CountForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result := shared.NewPaginated(logs, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListInvoiceActions returns the full audit trail of one invoice
func (s *RunService) ListInvoiceActions(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]collection.CollectionAction, error) {
	if _, err := s.invoices.FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
		return nil, err
	}
	return s.actions.FindByInvoice(ctx, tenantID, invoiceID)
}
