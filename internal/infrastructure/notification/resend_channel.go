package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerly/backend/internal/domain/collection"
	"github.com/ledgerly/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const maxResponseSize = 1 * 1024 * 1024

const defaultTimeout = 30 * time.Second

// ResendChannel delivers email through the Resend HTTP API
type ResendChannel struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewResendChannel creates a channel from the mail configuration section
func NewResendChannel(cfg config.MailConfig, logger *zap.Logger) *ResendChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendChannel{
		endpoint:   strings.TrimSuffix(baseURL, "/") + "/emails",
		apiKey:     cfg.APIKey,
		from:       fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send posts the message to the provider. Delivery failures are reported in
// the result, not as errors, so callers can record them on the audit trail.
func (c *ResendChannel) Send(ctx context.Context, msg collection.Message) collection.SendResult {
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.Body,
	})
	if err != nil {
		return collection.SendResult{Error: fmt.Sprintf("marshal email: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return collection.SendResult{Error: fmt.Sprintf("create email request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return collection.SendResult{Error: fmt.Sprintf("email request failed: %v", err)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return collection.SendResult{Error: fmt.Sprintf("read email response: %v", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var resp sendResponse
		detail := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &resp) == nil && resp.Message != "" {
			detail = resp.Message
		}
		if len(detail) > 512 {
			detail = detail[:512]
		}
		return collection.SendResult{Error: fmt.Sprintf("mail provider returned HTTP %d: %s", httpResp.StatusCode, detail)}
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err == nil && resp.ID != "" {
		c.logger.Debug("email accepted",
			zap.String("to", msg.To),
			zap.String("message_id", resp.ID))
	}
	return collection.SendResult{Success: true}
}

var _ collection.NotificationChannel = (*ResendChannel)(nil)
