package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealdoc/sealdoc/internal/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create registers a webhook endpoint for an account.
func (r *WebhookRepository) Create(w *models.WebhookURL) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.CreatedAt = time.Now()

	eventsJSON, err := json.Marshal(w.Events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO webhook_urls (id, account_id, url, secret, events, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.AccountID, w.URL, w.Secret, string(eventsJSON), w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook url: %w", wrapConstraint(err))
	}
	return nil
}

// GetByID returns a webhook endpoint by id, or nil when not found.
func (r *WebhookRepository) GetByID(id string) (*models.WebhookURL, error) {
	row := r.db.QueryRow(`
		SELECT id, account_id, url, COALESCE(secret, ''), events, created_at
		FROM webhook_urls WHERE id = ?`, id)

	w, err := scanWebhookURL(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ListForAccount returns the account's endpoints subscribed to the given
// event type.
func (r *WebhookRepository) ListForAccount(accountID, event string) ([]models.WebhookURL, error) {
	rows, err := r.db.Query(`
		SELECT id, account_id, url, COALESCE(secret, ''), events, created_at
		FROM webhook_urls WHERE account_id = ? ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []models.WebhookURL{}
	for rows.Next() {
		w, err := scanWebhookURL(rows)
		if err != nil {
			return nil, err
		}
		if w.SubscribedTo(event) {
			urls = append(urls, *w)
		}
	}
	return urls, rows.Err()
}

// List returns all of the account's endpoints regardless of subscription.
func (r *WebhookRepository) List(accountID string) ([]models.WebhookURL, error) {
	rows, err := r.db.Query(`
		SELECT id, account_id, url, COALESCE(secret, ''), events, created_at
		FROM webhook_urls WHERE account_id = ? ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []models.WebhookURL{}
	for rows.Next() {
		w, err := scanWebhookURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, *w)
	}
	return urls, rows.Err()
}

// Delete removes a webhook endpoint. Deleting an unknown id is a no-op.
func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM webhook_urls WHERE id = ?", id)
	return err
}

func scanWebhookURL(row rowScanner) (*models.WebhookURL, error) {
	w := &models.WebhookURL{}
	var eventsJSON sql.NullString
	err := row.Scan(&w.ID, &w.AccountID, &w.URL, &w.Secret, &eventsJSON, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalInto(eventsJSON, &w.Events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return w, nil
}
