package queue

import (
	"context"
)

// Queue defines the interface for durable job queue operations
type Queue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue gets the next job for processing
	// Returns nil, nil if the queue is empty
	Dequeue(ctx context.Context) (*Job, error)

	// Update updates the job status
	Update(ctx context.Context, job *Job) error

	// Get retrieves a job by ID
	Get(ctx context.Context, id string) (*Job, error)

	// List returns a list of jobs with optional filtering
	List(ctx context.Context, filter ListFilter) ([]*Job, error)

	// Delete removes a job from the queue
	Delete(ctx context.Context, id string) error

	// MoveToDLQ moves a permanently failed job to the dead letter queue
	MoveToDLQ(ctx context.Context, job *Job) error

	// Stats returns queue statistics
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the storage connection
	Close() error
}
