package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber   string                     `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	ClientID        uuid.UUID                  `gorm:"type:uuid;not null;index"`
	ClientName      string                     `gorm:"type:varchar(200);not null"`
	ClientEmail     string                     `gorm:"type:varchar(320);index"`
	TotalAmount     decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	PaidAmount      decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	IssueDate       time.Time                  `gorm:"not null"`
	DueDate         time.Time                  `gorm:"not null;index"`
	Status          collection.InvoiceStatus   `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	EscalationLevel collection.EscalationLevel `gorm:"type:varchar(30);not null;default:'NONE'"`
	FollowUpCount   int                        `gorm:"not null;default:0"`
	LastFollowUpAt  *time.Time                 `gorm:"index"`
	NextActionDate  *time.Time                 `gorm:"index"`
	AgentNotes      string                     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *collection.Invoice {
	return &collection.Invoice{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		ClientID:            m.ClientID,
		ClientName:          m.ClientName,
		ClientEmail:         m.ClientEmail,
		TotalAmount:         m.TotalAmount,
		PaidAmount:          m.PaidAmount,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		Status:              m.Status,
		EscalationLevel:     m.EscalationLevel,
		FollowUpCount:       m.FollowUpCount,
		LastFollowUpAt:      m.LastFollowUpAt,
		NextActionDate:      m.NextActionDate,
		AgentNotes:          m.AgentNotes,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *collection.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientID = inv.ClientID
	m.ClientName = inv.ClientName
	m.ClientEmail = inv.ClientEmail
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.EscalationLevel = inv.EscalationLevel
	m.FollowUpCount = inv.FollowUpCount
	m.LastFollowUpAt = inv.LastFollowUpAt
	m.NextActionDate = inv.NextActionDate
	m.AgentNotes = inv.AgentNotes
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *collection.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// CollectionActionModel is the persistence model for the CollectionAction
// aggregate root. Rows are append-only from the run's perspective; updates
// only advance a row's own status.
type CollectionActionModel struct {
	TenantAggregateModel
	InvoiceID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	ExecutionLogID uuid.UUID                 `gorm:"type:uuid;not null;index"`
	ActionType     collection.ActionType     `gorm:"type:varchar(30);not null;index"`
	Channel        collection.ActionChannel  `gorm:"type:varchar(10);not null"`
	Status         collection.ActionStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Recipient      string                    `gorm:"type:varchar(320)"`
	EmailSubject   string                    `gorm:"type:varchar(500)"`
	EmailBody      string                    `gorm:"type:text"`
	Reasoning      string                    `gorm:"type:text;not null"`
	ErrorDetail    string                    `gorm:"type:text"`
	Metadata       collection.ActionMetadata `gorm:"type:jsonb;default:'{}'"`
	ScheduledAt    *time.Time
	SentAt         *time.Time
	ExecutedAt     *time.Time
}

// TableName returns the table name for GORM
func (CollectionActionModel) TableName() string {
	return "collection_actions"
}

// ToDomain converts the persistence model to a domain CollectionAction.
func (m *CollectionActionModel) ToDomain() *collection.CollectionAction {
	return &collection.CollectionAction{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		InvoiceID:           m.InvoiceID,
		ExecutionLogID:      m.ExecutionLogID,
		ActionType:          m.ActionType,
		Channel:             m.Channel,
		Status:              m.Status,
		Recipient:           m.Recipient,
		EmailSubject:        m.EmailSubject,
		EmailBody:           m.EmailBody,
		Reasoning:           m.Reasoning,
		ErrorDetail:         m.ErrorDetail,
		Metadata:            m.Metadata,
		ScheduledAt:         m.ScheduledAt,
		SentAt:              m.SentAt,
		ExecutedAt:          m.ExecutedAt,
	}
}

// FromDomain populates the persistence model from a domain CollectionAction.
func (m *CollectionActionModel) FromDomain(a *collection.CollectionAction) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.InvoiceID = a.InvoiceID
	m.ExecutionLogID = a.ExecutionLogID
	m.ActionType = a.ActionType
	m.Channel = a.Channel
	m.Status = a.Status
	m.Recipient = a.Recipient
	m.EmailSubject = a.EmailSubject
	m.EmailBody = a.EmailBody
	m.Reasoning = a.Reasoning
	m.ErrorDetail = a.ErrorDetail
	m.Metadata = a.Metadata
	m.ScheduledAt = a.ScheduledAt
	m.SentAt = a.SentAt
	m.ExecutedAt = a.ExecutedAt
}

// CollectionActionModelFromDomain creates a new persistence model from a
// domain CollectionAction.
func CollectionActionModelFromDomain(a *collection.CollectionAction) *CollectionActionModel {
	m := &CollectionActionModel{}
	m.FromDomain(a)
	return m
}

// PaymentPlanModel is the persistence model for the PaymentPlan aggregate root.
type PaymentPlanModel struct {
	TenantAggregateModel
	InvoiceID         uuid.UUID                    `gorm:"type:uuid;not null;index"`
	TotalAmount       decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	InstallmentCount  int                          `gorm:"not null"`
	InstallmentAmount decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	StartDate         time.Time                    `gorm:"not null"`
	NextDueDate       time.Time                    `gorm:"not null"`
	Status            collection.PaymentPlanStatus `gorm:"type:varchar(20);not null;default:'PROPOSED'"`
}

// TableName returns the table name for GORM
func (PaymentPlanModel) TableName() string {
	return "payment_plans"
}

// ToDomain converts the persistence model to a domain PaymentPlan.
func (m *PaymentPlanModel) ToDomain() *collection.PaymentPlan {
	return &collection.PaymentPlan{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		InvoiceID:           m.InvoiceID,
		TotalAmount:         m.TotalAmount,
		InstallmentCount:    m.InstallmentCount,
		InstallmentAmount:   m.InstallmentAmount,
		StartDate:           m.StartDate,
		NextDueDate:         m.NextDueDate,
		Status:              m.Status,
	}
}

// FromDomain populates the persistence model from a domain PaymentPlan.
func (m *PaymentPlanModel) FromDomain(p *collection.PaymentPlan) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.TotalAmount = p.TotalAmount
	m.InstallmentCount = p.InstallmentCount
	m.InstallmentAmount = p.InstallmentAmount
	m.StartDate = p.StartDate
	m.NextDueDate = p.NextDueDate
	m.Status = p.Status
}

// PaymentPlanModelFromDomain creates a new persistence model from a domain
// PaymentPlan.
func PaymentPlanModelFromDomain(p *collection.PaymentPlan) *PaymentPlanModel {
	m := &PaymentPlanModel{}
	m.FromDomain(p)
	return m
}

// ExecutionLogModel is the persistence model for the ExecutionLog aggregate root.
type ExecutionLogModel struct {
	TenantAggregateModel
	Status            collection.RunStatus `gorm:"type:varchar(20);not null;default:'RUNNING';index"`
	InvoicesProcessed int                  `gorm:"not null;default:0"`
	ActionsCreated    int                  `gorm:"not null;default:0"`
	EmailsSent        int                  `gorm:"not null;default:0"`
	Errors            int                  `gorm:"not null;default:0"`
	DurationMs        int64                `gorm:"not null;default:0"`
	Summary           string               `gorm:"type:text"`
	ErrorDetail       string               `gorm:"type:text"`
	StartedAt         time.Time            `gorm:"not null;index"`
	FinishedAt        *time.Time
}

// TableName returns the table name for GORM
func (ExecutionLogModel) TableName() string {
	return "execution_logs"
}

// ToDomain converts the persistence model to a domain ExecutionLog.
func (m *ExecutionLogModel) ToDomain() *collection.ExecutionLog {
	return &collection.ExecutionLog{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		Status:              m.Status,
		InvoicesProcessed:   m.InvoicesProcessed,
		ActionsCreated:      m.ActionsCreated,
		EmailsSent:          m.EmailsSent,
		Errors:              m.Errors,
		DurationMs:          m.DurationMs,
		Summary:             m.Summary,
		ErrorDetail:         m.ErrorDetail,
		StartedAt:           m.StartedAt,
		FinishedAt:          m.FinishedAt,
	}
}

// FromDomain populates the persistence model from a domain ExecutionLog.
func (m *ExecutionLogModel) FromDomain(l *collection.ExecutionLog) {
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	m.Status = l.Status
	m.InvoicesProcessed = l.InvoicesProcessed
	m.ActionsCreated = l.ActionsCreated
	m.EmailsSent = l.EmailsSent
	m.Errors = l.Errors
	m.DurationMs = l.DurationMs
	m.Summary = l.Summary
	m.ErrorDetail = l.ErrorDetail
	m.StartedAt = l.StartedAt
	m.FinishedAt = l.FinishedAt
}

// ExecutionLogModelFromDomain creates a new persistence model from a domain
// ExecutionLog.
func ExecutionLogModelFromDomain(l *collection.ExecutionLog) *ExecutionLogModel {
	m := &ExecutionLogModel{}
	m.FromDomain(l)
	return m
}
