package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcollection "github.com/ledgerly/backend/internal/application/collection"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/domain/shared"
	"github.com/ledgerly/backend/internal/interfaces/http/dto"
)

// SchedulerStatus exposes the daily scheduler's state to the API
type SchedulerStatus interface {
	GetStatus() map[string]any
	TriggerManualRun(ctx context.Context) error
}

// CollectorHandler handles collection run HTTP requests
type CollectorHandler struct {
	BaseHandler
	runs      *appcollection.RunService
	scheduler SchedulerStatus
}

// NewCollectorHandler creates a new collector handler. The scheduler is
// optional; status endpoints report 404 when it is absent.
func NewCollectorHandler(runs *appcollection.RunService, scheduler SchedulerStatus) *CollectorHandler {
	return &CollectorHandler{
		runs:      runs,
		scheduler: scheduler,
	}
}

// RegisterRoutes registers the collector routes on the API group
func (h *CollectorHandler) RegisterRoutes(rg *gin.RouterGroup) {
	collector := rg.Group("/collector")
	{
		collector.POST("/runs", h.TriggerRun)
		collector.GET("/runs", h.ListRuns)
		collector.GET("/runs/:id", h.GetRun)
		collector.GET("/scheduler", h.GetSchedulerStatus)
		collector.GET("/invoices/:id/actions", h.ListInvoiceActions)
	}
}

// TriggerRun starts a collection run for the caller's tenant. The run is
// synchronous; the response carries the full result. A run already holding
// the tenant lock yields 409.
func (h *CollectorHandler) TriggerRun(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	result, err := h.runs.Run(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRunResultResponse(result))
}

// ListRuns returns the tenant's run history, newest first
func (h *CollectorHandler) ListRuns(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	}

	result, err := h.runs.ListRuns(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	runs := make([]RunResponse, len(result.Items))
	for i := range result.Items {
		runs[i] = toRunResponse(&result.Items[i])
	}
	h.SuccessWithMeta(c, runs, result.Total, result.Page, result.PageSize)
}

// GetRun returns one run log by ID
func (h *CollectorHandler) GetRun(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID")
		return
	}

	log, err := h.runs.GetRun(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toRunResponse(log))
}

// ListInvoiceActions returns the invoice's collection audit trail, newest first
func (h *CollectorHandler) ListInvoiceActions(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant identification required")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	actions, err := h.runs.ListInvoiceActions(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ActionResponse, len(actions))
	for i := range actions {
		responses[i] = toActionResponse(&actions[i])
	}
	h.Success(c, responses)
}

// GetSchedulerStatus returns the daily scheduler's state
func (h *CollectorHandler) GetSchedulerStatus(c *gin.Context) {
	if h.scheduler == nil {
		h.NotFound(c, "Scheduler is not enabled")
		return
	}
	h.Success(c, h.scheduler.GetStatus())
}

// Response types

// RunResultResponse is the outcome of a triggered run
type RunResultResponse struct {
	Success    bool     `json:"success"`
	Processed  int      `json:"processed"`
	Actions    int      `json:"actions_taken"`
	EmailsSent int      `json:"emails_sent"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// RunResponse represents a run log in API responses
type RunResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	InvoicesProcessed int     `json:"invoices_processed"`
	ActionsCreated    int     `json:"actions_created"`
	EmailsSent        int     `json:"emails_sent"`
	Errors            int     `json:"errors"`
	DurationMs        int64   `json:"duration_ms"`
	Summary           string  `json:"summary,omitempty"`
	ErrorDetail       string  `json:"error_detail,omitempty"`
	StartedAt         string  `json:"started_at"`
	FinishedAt        *string `json:"finished_at,omitempty"`
}

// ActionResponse represents one audit trail entry in API responses
type ActionResponse struct {
	ID           string            `json:"id"`
	InvoiceID    string            `json:"invoice_id"`
	RunID        string            `json:"run_id"`
	ActionType   string            `json:"action_type"`
	Channel      string            `json:"channel"`
	Status       string            `json:"status"`
	Recipient    string            `json:"recipient,omitempty"`
	EmailSubject string            `json:"email_subject,omitempty"`
	Reasoning    string            `json:"reasoning"`
	ErrorDetail  string            `json:"error_detail,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	ScheduledAt  *string           `json:"scheduled_at,omitempty"`
	SentAt       *string           `json:"sent_at,omitempty"`
	ExecutedAt   *string           `json:"executed_at,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

// Conversion functions

func toRunResultResponse(result *appcollection.RunResult) RunResultResponse {
	return RunResultResponse{
		Success:    result.Success,
		Processed:  result.Stats.Processed,
		Actions:    result.Stats.ActionsTaken,
		EmailsSent: result.Stats.EmailsSent,
		ErrorCount: result.Stats.Errors,
		Errors:     result.Errors,
		DurationMs: result.DurationMs,
	}
}

func toRunResponse(log *collection.ExecutionLog) RunResponse {
	resp := RunResponse{
		ID:                log.ID.String(),
		Status:            string(log.Status),
		InvoicesProcessed: log.InvoicesProcessed,
		ActionsCreated:    log.ActionsCreated,
		EmailsSent:        log.EmailsSent,
		Errors:            log.Errors,
		DurationMs:        log.DurationMs,
		Summary:           log.Summary,
		ErrorDetail:       log.ErrorDetail,
		StartedAt:         log.StartedAt.Format(time.RFC3339),
	}
	if log.FinishedAt != nil {
		t := log.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &t
	}
	return resp
}

func toActionResponse(action *collection.CollectionAction) ActionResponse {
	resp := ActionResponse{
		ID:           action.ID.String(),
		InvoiceID:    action.InvoiceID.String(),
		RunID:        action.ExecutionLogID.String(),
		ActionType:   string(action.ActionType),
		Channel:      string(action.Channel),
		Status:       string(action.Status),
		Recipient:    action.Recipient,
		EmailSubject: action.EmailSubject,
		Reasoning:    action.Reasoning,
		ErrorDetail:  action.ErrorDetail,
		Metadata:     action.Metadata,
		CreatedAt:    action.CreatedAt.Format(time.RFC3339),
	}
	if action.ScheduledAt != nil {
		t := action.ScheduledAt.Format(time.RFC3339)
		resp.ScheduledAt = &t
	}
	if action.SentAt != nil {
		t := action.SentAt.Format(time.RFC3339)
		resp.SentAt = &t
	}
	if action.ExecutedAt != nil {
		t := action.ExecutedAt.Format(time.RFC3339)
		resp.ExecutedAt = &t
	}
	return resp
}
