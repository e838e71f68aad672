package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	appcollection "github.com/ledgerly/backend/internal/application/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// cronTickerInterval is how often the scheduler checks the clock
const cronTickerInterval = 1 * time.Minute

// ErrSchedulerNotRunning is returned by manual triggers on a stopped scheduler
var ErrSchedulerNotRunning = errors.New("scheduler is not running")

// TenantProvider lists the tenants that have work for the daily run
type TenantProvider interface {
	FindTenantsWithCollectibleInvoices(ctx context.Context) ([]uuid.UUID, error)
}

// CollectionCronSchedulerConfig holds the daily run schedule
type CollectionCronSchedulerConfig struct {
	Enabled bool
	// CronHour is the hour (0-23) to start the daily runs
	CronHour int
	// CronMinute is the minute (0-59) to start the daily runs
	CronMinute int
	// DailyCronSchedule is the cron expression (parsed to extract hour/minute)
	DailyCronSchedule string
	// JobTimeout bounds one tenant's collection run
	JobTimeout time.Duration
}

// DefaultCollectionCronSchedulerConfig returns the default schedule: 9:00 AM daily
func DefaultCollectionCronSchedulerConfig() CollectionCronSchedulerConfig {
	return CollectionCronSchedulerConfig{
		Enabled:           true,
		CronHour:          9,
		CronMinute:        0,
		DailyCronSchedule: "0 9 * * *",
		JobTimeout:        30 * time.Minute,
	}
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract
// hour and minute. Returns defaults (9:00) when the expression is empty.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour = 9
	minute = 0

	if cronExpr == "" {
		return hour, minute, nil
	}

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		if val, parseErr := parseIntOrDefault(parts[0], 0); parseErr == nil {
			minute = val
		}
	}
	if parts[1] != "*" {
		if val, parseErr := parseIntOrDefault(parts[1], 9); parseErr == nil {
			hour = val
		}
	}

	if minute < 0 || minute > 59 {
		return 9, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 9, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}

	return hour, minute, nil
}

// parseIntOrDefault parses an int string or returns default
func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" || s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, errors.New("not a number")
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// CollectionCronScheduler starts a collection run for every tenant with
// collectible invoices once a day
type CollectionCronScheduler struct {
	config  CollectionCronSchedulerConfig
	runs    *appcollection.RunService
	tenants TenantProvider
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	lastRunAt *time.Time
	nextRunAt *time.Time
}

// NewCollectionCronScheduler creates a new cron-based collection scheduler
func NewCollectionCronScheduler(
	config CollectionCronSchedulerConfig,
	runs *appcollection.RunService,
	tenants TenantProvider,
	logger *zap.Logger,
) *CollectionCronScheduler {
	return &CollectionCronScheduler{
		config:  config,
		runs:    runs,
		tenants: tenants,
		logger:  logger,
	}
}

// Start starts the cron loop
func (s *CollectionCronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.calculateNextRunTime()

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Collection cron scheduler started",
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.Timep("next_run_at", s.nextRunAt),
	)

	return nil
}

// Stop stops the cron loop, waiting for an in-flight batch to finish
func (s *CollectionCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Collection cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Collection cron scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *CollectionCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.runDailyCollection(ctx)
				s.calculateNextRunTime()
			}
		}
	}
}

func (s *CollectionCronScheduler) shouldRun(now time.Time) bool {
	return now.Hour() == s.config.CronHour && now.Minute() == s.config.CronMinute
}

func (s *CollectionCronScheduler) calculateNextRunTime() {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.CronHour, s.config.CronMinute, 0, 0, now.Location())
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// runDailyCollection runs the collector for every tenant with eligible work.
// Tenants run sequentially: each run already caps its own batch, and the
// per-tenant lock makes overlap harmless.
func (s *CollectionCronScheduler) runDailyCollection(ctx context.Context) {
	s.logger.Info("Starting daily collection runs")

	now := time.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	tenantIDs, err := s.tenants.FindTenantsWithCollectibleInvoices(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for daily collection", zap.Error(err))
		return
	}

	s.logger.Info("Scheduling collection runs", zap.Int("tenant_count", len(tenantIDs)))

	for _, tenantID := range tenantIDs {
		s.runForTenant(ctx, tenantID)
	}

	s.logger.Info("Daily collection runs finished", zap.Int("tenant_count", len(tenantIDs)))
}

func (s *CollectionCronScheduler) runForTenant(ctx context.Context, tenantID uuid.UUID) {
	runCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	result, err := s.runs.Run(runCtx, tenantID)
	switch {
	case errors.Is(err, shared.ErrRunInProgress):
		s.logger.Info("Skipping tenant, run already in progress",
			zap.String("tenant_id", tenantID.String()))
	case err != nil:
		s.logger.Error("Collection run failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
	default:
		s.logger.Info("Collection run finished",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("invoices_processed", result.Stats.Processed),
			zap.Int("emails_sent", result.Stats.EmailsSent),
			zap.Int("errors", result.Stats.Errors))
	}
}

// TriggerManualRun starts the daily collection outside the schedule.
// Uses a background context so the caller's request ending does not cancel
// the batch.
func (s *CollectionCronScheduler) TriggerManualRun(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	go s.runDailyCollection(context.Background())
	return nil
}

// GetStatus returns the current status of the cron scheduler
func (s *CollectionCronScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"enabled":     s.config.Enabled,
		"is_running":  s.isRunning,
		"cron_hour":   s.config.CronHour,
		"cron_minute": s.config.CronMinute,
		"last_run_at": s.lastRunAt,
		"next_run_at": s.nextRunAt,
	}
}

// GetNextRunAt returns when the next scheduled run will occur
func (s *CollectionCronScheduler) GetNextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}
