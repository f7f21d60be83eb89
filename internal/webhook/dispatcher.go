package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/metrics"
	"github.com/sealdoc/sealdoc/internal/models"
	"github.com/sealdoc/sealdoc/internal/queue"
	"github.com/sealdoc/sealdoc/internal/repository"
)

// JobPayload is the durable payload of a webhook delivery job. It
// references the template by ID so the deliverer reads fresh state at
// delivery time instead of a snapshot from enqueue time.
type JobPayload struct {
	Event        string `json:"event"`
	TemplateID   string `json:"template_id"`
	WebhookURLID string `json:"webhook_url_id"`
}

// Dispatcher fans a template event out into one delivery job per
// subscribed endpoint.
type Dispatcher struct {
	webhooks *repository.WebhookRepository
	queue    queue.Queue
	logger   *slog.Logger
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(webhooks *repository.WebhookRepository, q queue.Queue, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks: webhooks,
		queue:    q,
		logger:   logger,
	}
}

// Dispatch enqueues a delivery job for every endpoint of the account
// subscribed to the event. A failure to enqueue for one endpoint does
// not prevent delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, accountID, event, templateID string) error {
	endpoints, err := d.webhooks.ListForAccount(accountID, event)
	if err != nil {
		return fmt.Errorf("failed to list webhook endpoints: %w", err)
	}

	var firstErr error
	for _, endpoint := range endpoints {
		payload, err := json.Marshal(JobPayload{
			Event:        event,
			TemplateID:   templateID,
			WebhookURLID: endpoint.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal job payload: %w", err)
		}

		job := &queue.Job{
			ID:        uuid.New().String(),
			Type:      queue.JobTypeWebhookDeliver,
			Payload:   payload,
			Status:    queue.StatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := d.queue.Enqueue(ctx, job); err != nil {
			d.logger.Error("failed to enqueue webhook job",
				"event", event,
				"template_id", templateID,
				"webhook_url_id", endpoint.ID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		metrics.IncWebhookJobsEnqueued()
		d.logger.Debug("webhook job enqueued",
			"event", event,
			"template_id", templateID,
			"webhook_url_id", endpoint.ID,
		)
	}

	return firstErr
}

// Event is the JSON body posted to webhook endpoints
type Event struct {
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      *models.Template `json:"data"`
}
