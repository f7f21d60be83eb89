package models

import "time"

// Webhook event types emitted by the template lifecycle.
const (
	EventTemplateCreated = "template.created"
	EventTemplateUpdated = "template.updated"
)

// WebhookURL is an account-registered endpoint subscribed to lifecycle
// events. This core only reads the registry and enqueues delivery jobs.
type WebhookURL struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"` // used to sign delivery bodies, never exposed
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscribedTo reports whether the endpoint wants the given event type.
// An empty event list means all events.
func (w *WebhookURL) SubscribedTo(event string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}
