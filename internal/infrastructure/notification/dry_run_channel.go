package notification

import (
	"context"

	"github.com/ledgerly/backend/internal/domain/collection"
	"go.uber.org/zap"
)

// DryRunChannel logs outbound email instead of delivering it. Used in
// development when mail.dry_run is enabled.
type DryRunChannel struct {
	logger *zap.Logger
}

// NewDryRunChannel creates a logging-only channel
func NewDryRunChannel(logger *zap.Logger) *DryRunChannel {
	return &DryRunChannel{logger: logger}
}

// Send logs the message and reports success
func (c *DryRunChannel) Send(_ context.Context, msg collection.Message) collection.SendResult {
	c.logger.Info("dry-run email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)))
	return collection.SendResult{Success: true}
}

var _ collection.NotificationChannel = (*DryRunChannel)(nil)
