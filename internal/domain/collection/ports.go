package collection

import (
	"context"
	"time"
)

// CompletionRequest is the prompt context handed to the decision provider
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// DecisionProvider produces a raw next-action recommendation for one invoice.
// Responses are free text; callers own JSON extraction and validation.
type DecisionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Message is an outbound notification
type Message struct {
	To      string
	Subject string
	Body    string // HTML
}

// SendResult reports the outcome of a notification attempt
type SendResult struct {
	Success bool
	Error   string
}

// NotificationChannel delivers a formatted message to a recipient
type NotificationChannel interface {
	Send(ctx context.Context, msg Message) SendResult
}

// ReliabilityCache is the shared key/value store for client history profiles.
// Individual get/set calls rely on the store's own atomicity; the collector
// never holds a lock across its operations.
type ReliabilityCache interface {
	// Get returns the cached value and whether the key was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RunLock mutually excludes concurrent runs for one tenant. Acquire returns
// false when another run already holds the lock.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
