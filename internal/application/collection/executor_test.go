package collection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExecutorFixture() (*ActionExecutor, *MockInvoiceRepository, *MockActionRepository, *MockPaymentPlanRepository, *MockNotificationChannel) {
	invoices := new(MockInvoiceRepository)
	actions := new(MockActionRepository)
	plans := new(MockPaymentPlanRepository)
	channel := new(MockNotificationChannel)
	executor := NewActionExecutor(invoices, actions, plans, channel, zap.NewNop())
	return executor, invoices, actions, plans, channel
}

func TestActionExecutor_SendReminder_Success(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 5)
	logID := uuid.New()

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)
	channel.On("Send", mock.Anything, mock.Anything).Return(collection.SendResult{Success: true})
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:          collection.DecisionSendReminder,
		Reasoning:       "5 days overdue, reliable payer",
		EscalationLevel: collection.EscalationFirmReminder,
		EmailSubject:    "Payment reminder",
		EmailBody:       "<p>Please pay.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 1, stats.EmailsSent)
	assert.Equal(t, 0, stats.Errors)

	require.NotNil(t, created)
	assert.Equal(t, collection.ActionTypeSendReminder, created.ActionType)
	assert.Equal(t, collection.ActionStatusSent, created.Status)
	assert.Equal(t, logID, created.ExecutionLogID)
	assert.Equal(t, "billing@acme.test", created.Recipient)

	assert.Equal(t, 1, invoice.FollowUpCount)
	assert.Equal(t, collection.EscalationFirmReminder, invoice.EscalationLevel)
	assert.NotNil(t, invoice.LastFollowUpAt)
	assert.NotNil(t, invoice.NextActionDate)
	channel.AssertNumberOfCalls(t, "Send", 1)
}

func TestActionExecutor_Escalate_LegalWarningKeepsOverdueStatus(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 40)
	invoice.EscalationLevel = collection.EscalationFinalNotice
	logID := uuid.New()

	actions.On("Create", mock.Anything, mock.Anything).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)
	channel.On("Send", mock.Anything, mock.Anything).Return(collection.SendResult{Success: true})
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:          collection.DecisionEscalate,
		Reasoning:       "40 days overdue with no response",
		EscalationLevel: collection.EscalationLegalWarning,
		EmailSubject:    "Final legal warning",
		EmailBody:       "<p>Legal action pending.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.EmailsSent)
	assert.Equal(t, collection.EscalationLegalWarning, invoice.EscalationLevel)
	// Escalation never flips the invoice out of OVERDUE
	assert.Equal(t, collection.InvoiceStatusOverdue, invoice.Status)
}

func TestActionExecutor_SendReminder_NoClientEmail(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 5)
	invoice.ClientEmail = ""
	logID := uuid.New()

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)

	decision := collection.CollectionDecision{
		Action:       collection.DecisionSendReminder,
		Reasoning:    "overdue",
		EmailSubject: "Reminder",
		EmailBody:    "<p>Pay up.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 0, stats.EmailsSent)
	assert.Equal(t, 1, stats.Errors)

	require.NotNil(t, created)
	assert.Equal(t, collection.ActionStatusFailed, created.Status)
	assert.Contains(t, created.ErrorDetail, "no client email")

	// The channel is never invoked and the invoice is left untouched
	channel.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestActionExecutor_SendReminder_DeliveryFailure(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 5)
	logID := uuid.New()

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)
	channel.On("Send", mock.Anything, mock.Anything).Return(collection.SendResult{Success: false, Error: "mailbox full"})
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:          collection.DecisionSendReminder,
		Reasoning:       "overdue",
		EscalationLevel: collection.EscalationFriendlyReminder,
		EmailSubject:    "Reminder",
		EmailBody:       "<p>Pay up.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.EmailsSent)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, collection.ActionStatusFailed, created.Status)
	assert.Equal(t, "mailbox full", created.ErrorDetail)

	// Follow-up bookkeeping still lands so the invoice is not retried on
	// every subsequent run
	assert.Equal(t, 1, invoice.FollowUpCount)
	invoices.AssertCalled(t, "SaveWithLock", mock.Anything, invoice)
}

func TestActionExecutor_OfferPaymentPlan(t *testing.T) {
	executor, invoices, actions, plans, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 20)
	invoice.TotalAmount = decimal.NewFromInt(2000)
	invoice.PaidAmount = decimal.NewFromInt(1000)
	invoice.EscalationLevel = collection.EscalationUrgentNotice
	logID := uuid.New()

	plans.On("FindByInvoice", mock.Anything, invoice.TenantID, invoice.ID).
		Return([]collection.PaymentPlan{}, nil)
	var plan *collection.PaymentPlan
	plans.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		plan = args.Get(1).(*collection.PaymentPlan)
	}).Return(nil)

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)

	var sent collection.Message
	channel.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(collection.Message)
	}).Return(collection.SendResult{Success: true})
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:       collection.DecisionOfferPaymentPlan,
		Reasoning:    "large balance, engaged client",
		EmailSubject: "Payment plan proposal",
		EmailBody:    "<p>We can split this.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 1, stats.EmailsSent)

	// The plan covers the outstanding balance in four equal installments
	require.NotNil(t, plan)
	assert.True(t, plan.TotalAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 4, plan.InstallmentCount)
	assert.True(t, plan.InstallmentAmount.Equal(decimal.NewFromInt(250)))

	require.NotNil(t, created)
	assert.Equal(t, plan.ID.String(), created.Metadata["payment_plan_id"])

	// The rendered plan summary is appended to the provider's body
	assert.Contains(t, sent.Body, "We can split this.")
	assert.Contains(t, sent.Body, "4 monthly installments of 250.00")

	// A plan offer does not move the escalation ladder
	assert.Equal(t, collection.EscalationUrgentNotice, invoice.EscalationLevel)
	assert.Equal(t, 1, invoice.FollowUpCount)
}

func TestActionExecutor_OfferPaymentPlan_ReusesOpenProposal(t *testing.T) {
	executor, invoices, actions, plans, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 25)
	logID := uuid.New()

	existing, err := collection.NewPaymentPlan(invoice.TenantID, invoice.ID, decimal.NewFromInt(1000), time.Now().AddDate(0, 0, -7))
	require.NoError(t, err)
	plans.On("FindByInvoice", mock.Anything, invoice.TenantID, invoice.ID).
		Return([]collection.PaymentPlan{*existing}, nil)

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	actions.On("Update", mock.Anything, mock.Anything).Return(nil)
	channel.On("Send", mock.Anything, mock.Anything).Return(collection.SendResult{Success: true})
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:       collection.DecisionOfferPaymentPlan,
		Reasoning:    "client asked for the proposal again",
		EmailSubject: "Payment plan proposal",
		EmailBody:    "<p>As discussed.</p>",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 1, stats.EmailsSent)

	// The open proposal is re-offered, not duplicated
	plans.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	require.NotNil(t, created)
	assert.Equal(t, existing.ID.String(), created.Metadata["payment_plan_id"])
}

func TestActionExecutor_Wait(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 2)
	logID := uuid.New()

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:    collection.DecisionWait,
		Reasoning: "client confirmed payment is in transit",
		WaitDays:  5,
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, 0, stats.EmailsSent)
	assert.Equal(t, 0, stats.Errors)

	require.NotNil(t, created)
	assert.Equal(t, collection.ActionStatusScheduled, created.Status)
	assert.Equal(t, collection.ActionChannelNone, created.Channel)
	require.NotNil(t, created.ScheduledAt)

	require.NotNil(t, invoice.NextActionDate)
	assert.Equal(t, *invoice.NextActionDate, *created.ScheduledAt)
	// WAIT does not count as a follow-up
	assert.Equal(t, 0, invoice.FollowUpCount)
	channel.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestActionExecutor_ManualReview(t *testing.T) {
	executor, invoices, actions, _, channel := newExecutorFixture()
	invoice := newTestInvoice(uuid.New(), 15)
	logID := uuid.New()

	var created *collection.CollectionAction
	actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*collection.CollectionAction)
	}).Return(nil)
	invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

	decision := collection.CollectionDecision{
		Action:    collection.DecisionManualReview,
		Reasoning: "client disputes the line items",
	}

	stats, err := executor.Execute(context.Background(), invoice, decision, logID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ActionsCreated)
	assert.Equal(t, collection.ActionStatusCompleted, created.Status)
	assert.Equal(t, collection.InvoiceStatusDisputed, invoice.Status)
	assert.Equal(t, "client disputes the line items", invoice.AgentNotes)
	channel.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
