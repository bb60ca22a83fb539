package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/circuitbreaker"
	"ideaflow/pkg/config"
	"ideaflow/pkg/trace"
	"ideaflow/pkg/util"
)

// WebhookSender posts each message as JSON to a fixed URL. Calls go through a
// circuit breaker so a dead endpoint fails fast.
type WebhookSender struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewWebhookSender(cfg config.WebhookConfig, logger *zap.Logger) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cbCfg := circuitbreaker.DefaultConfig()
	cbCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &WebhookSender{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.NewCircuitBreaker("notify-webhook", cbCfg),
		logger:  logger,
	}
}

func (s *WebhookSender) Channel() model.NotificationChannel {
	return model.ChannelWebhook
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return util.Permanent(err)
	}
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.post(ctx, body)
	})
}

func (s *WebhookSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return util.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName, traceID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	default:
		// 4xx will not change on retry
		return util.Permanent(fmt.Errorf("webhook rejected message: %d", resp.StatusCode))
	}
}
