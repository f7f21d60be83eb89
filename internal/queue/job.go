package queue

import (
	"encoding/json"
	"time"
)

// JobStatus represents the status of a job in the queue
type JobStatus string

const (
	StatusPending  JobStatus = "pending"
	StatusRunning  JobStatus = "running"
	StatusDone     JobStatus = "done"
	StatusFailed   JobStatus = "failed"
	StatusDeferred JobStatus = "deferred"
)

// Job types known to the processor.
const (
	JobTypeWebhookDeliver = "webhook.deliver"
)

// Job represents a unit of background work
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      JobStatus       `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	RetryCount  int             `json:"retry_count"`
	LastError   string          `json:"last_error,omitempty"`
}

// Stats represents queue statistics
type Stats struct {
	Pending  int64 `json:"pending"`
	Running  int64 `json:"running"`
	Done     int64 `json:"done"`
	Failed   int64 `json:"failed"`
	Deferred int64 `json:"deferred"`
	Dead     int64 `json:"dead"`
	Total    int64 `json:"total"`
}

// ListFilter represents filter options for listing jobs
type ListFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
