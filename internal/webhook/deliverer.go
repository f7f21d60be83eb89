package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sealdoc/sealdoc/internal/metrics"
	"github.com/sealdoc/sealdoc/internal/queue"
	"github.com/sealdoc/sealdoc/internal/repository"
)

// StatusError is returned when an endpoint answers with a non-2xx
// status. 5xx and 429 responses are retried, other 4xx are not.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.StatusCode)
}

// IsTemporaryError reports whether a delivery error is worth retrying.
// Network failures are temporary; endpoint rejections other than
// server errors and throttling are permanent.
func IsTemporaryError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Deliverer executes webhook delivery jobs. It re-reads the template
// and endpoint at delivery time, so deliveries racing a delete or an
// endpoint removal drop silently instead of failing.
type Deliverer struct {
	templates *repository.TemplateRepository
	webhooks  *repository.WebhookRepository
	client    *http.Client
	logger    *slog.Logger
}

// NewDeliverer creates a new webhook deliverer
func NewDeliverer(templates *repository.TemplateRepository, webhooks *repository.WebhookRepository, timeout time.Duration, logger *slog.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Deliverer{
		templates: templates,
		webhooks:  webhooks,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Handle implements queue.Handler
func (d *Deliverer) Handle(ctx context.Context, job *queue.Job) error {
	var payload JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
	}

	endpoint, err := d.webhooks.GetByID(payload.WebhookURLID)
	if err != nil {
		return fmt.Errorf("failed to load webhook endpoint: %w", err)
	}
	if endpoint == nil {
		d.logger.Info("webhook endpoint removed, dropping delivery",
			"webhook_url_id", payload.WebhookURLID)
		return nil
	}

	template, err := d.templates.GetByID(payload.TemplateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if template == nil {
		d.logger.Info("template removed, dropping delivery",
			"template_id", payload.TemplateID)
		return nil
	}

	body, err := json.Marshal(Event{
		EventType: payload.Event,
		Timestamp: time.Now().UTC(),
		Data:      template,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if endpoint.Secret != "" {
		req.Header.Set(SignatureHeader, SignBody(endpoint.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		metrics.IncWebhookDeliveries(payload.Event, "failure")
		return fmt.Errorf("delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncWebhookDeliveries(payload.Event, "failure")
		return &StatusError{StatusCode: resp.StatusCode}
	}

	metrics.IncWebhookDeliveries(payload.Event, "success")
	d.logger.Info("webhook delivered",
		"event", payload.Event,
		"template_id", payload.TemplateID,
		"url", endpoint.URL,
		"status", resp.StatusCode,
	)
	return nil
}
