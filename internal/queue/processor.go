package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sealdoc/sealdoc/internal/metrics"
)

// Handler executes a single job
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// ErrorChecker reports whether an error is temporary and worth retrying
type ErrorChecker func(err error) bool

// Processor processes the job queue
type Processor struct {
	queue           Queue
	handler         Handler
	workers         int
	retryInterval   time.Duration
	maxRetries      int
	processInterval time.Duration
	handleTimeout   time.Duration
	isTemporary     ErrorChecker
	logger          *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ProcessorConfig contains processor configuration
type ProcessorConfig struct {
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	ProcessInterval time.Duration
	HandleTimeout   time.Duration
}

// NewProcessor creates a new queue processor
func NewProcessor(q Queue, handler Handler, cfg ProcessorConfig, isTemp ErrorChecker, logger *slog.Logger) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.ProcessInterval <= 0 {
		cfg.ProcessInterval = time.Second
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 2 * time.Minute
	}
	if isTemp == nil {
		isTemp = func(err error) bool { return true }
	}

	return &Processor{
		queue:           q,
		handler:         handler,
		workers:         cfg.Workers,
		retryInterval:   cfg.RetryInterval,
		maxRetries:      cfg.MaxRetries,
		processInterval: cfg.ProcessInterval,
		handleTimeout:   cfg.HandleTimeout,
		isTemporary:     isTemp,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}
}

// Start starts the processor workers
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("starting queue processor", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops the processor gracefully
func (p *Processor) Stop() {
	p.logger.Info("stopping queue processor")
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("queue processor stopped")
}

// worker is the main processing loop
func (p *Processor) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-p.stopCh:
			logger.Debug("worker stopped by signal")
			return
		case <-ticker.C:
			p.processOne(ctx, logger)
		}
	}
}

// processOne processes a single job from the queue
func (p *Processor) processOne(ctx context.Context, logger *slog.Logger) {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		logger.Error("failed to dequeue job", "error", err)
		return
	}

	if job == nil {
		return // Queue is empty
	}

	logger = logger.With("job_id", job.ID, "job_type", job.Type)
	logger.Debug("processing job")

	handleCtx, cancel := context.WithTimeout(ctx, p.handleTimeout)
	err = p.handler.Handle(handleCtx, job)
	cancel()

	if err == nil {
		job.Status = StatusDone
		job.UpdatedAt = time.Now()

		if err := p.queue.Update(ctx, job); err != nil {
			logger.Error("failed to update job status", "error", err)
		}

		logger.Info("job completed")
		return
	}

	logger.Warn("job failed", "error", err, "retry_count", job.RetryCount)

	job.RetryCount++
	job.LastError = err.Error()
	job.UpdatedAt = time.Now()

	if p.isTemporary(err) && job.RetryCount < p.maxRetries {
		// Schedule retry with exponential backoff
		backoff := p.calculateBackoff(job.RetryCount)
		job.Status = StatusDeferred
		job.NextRetryAt = time.Now().Add(backoff)

		logger.Info("job deferred",
			"retry_count", job.RetryCount,
			"next_retry_at", job.NextRetryAt,
			"backoff", backoff,
		)
		metrics.IncWebhookJobsDeferred()

		if err := p.queue.Update(ctx, job); err != nil {
			logger.Error("failed to update job status", "error", err)
		}
		return
	}

	// Permanent failure or max retries exceeded
	logger.Error("job failed permanently",
		"retry_count", job.RetryCount,
		"max_retries", p.maxRetries,
	)

	if err := p.queue.MoveToDLQ(ctx, job); err != nil {
		logger.Error("failed to move job to dead letter queue", "error", err)
	}
}

// calculateBackoff calculates exponential backoff duration
func (p *Processor) calculateBackoff(retryCount int) time.Duration {
	// retry_interval * 2^(retry_count-1), capped at 12x and 1 hour
	multiplier := 1 << (retryCount - 1)
	if multiplier > 12 {
		multiplier = 12
	}

	backoff := time.Duration(multiplier) * p.retryInterval

	maxBackoff := time.Hour
	if backoff > maxBackoff {
		return maxBackoff
	}

	return backoff
}
