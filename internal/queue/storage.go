package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketJobs       = []byte("jobs")
	bucketPending    = []byte("pending")
	bucketDeferred   = []byte("deferred")
	bucketDeadLetter = []byte("dead_letter")
)

// BoltStorage implements Queue using BoltDB
type BoltStorage struct {
	db *bolt.DB
}

// NewBoltStorage creates a new BoltDB storage
func NewBoltStorage(path string) (*BoltStorage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketJobs, bucketPending, bucketDeferred, bucketDeadLetter} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

// Enqueue adds a job to the queue
func (s *BoltStorage) Enqueue(ctx context.Context, job *Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := jobBucket.Put([]byte(job.ID), data); err != nil {
			return fmt.Errorf("failed to store job: %w", err)
		}

		pendingBucket := tx.Bucket(bucketPending)
		indexKey := makeIndexKey(job.CreatedAt, job.ID)
		if err := pendingBucket.Put(indexKey, []byte(job.ID)); err != nil {
			return fmt.Errorf("failed to add to pending index: %w", err)
		}

		return nil
	})
}

// Dequeue gets the next job for processing. Deferred jobs whose retry
// time has arrived take priority over newly enqueued ones.
func (s *BoltStorage) Dequeue(ctx context.Context) (*Job, error) {
	var job *Job

	err := s.db.Update(func(tx *bolt.Tx) error {
		deferredBucket := tx.Bucket(bucketDeferred)
		jobBucket := tx.Bucket(bucketJobs)

		c := deferredBucket.Cursor()
		now := time.Now()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			ts := parseTimestampFromKey(k)
			if ts.After(now) {
				break // All remaining are in the future
			}

			jobData := jobBucket.Get(v)
			if jobData == nil {
				// Job was deleted, clean up index
				c.Delete()
				continue
			}

			var j Job
			if err := json.Unmarshal(jobData, &j); err != nil {
				continue
			}

			j.Status = StatusRunning
			j.UpdatedAt = now

			data, err := json.Marshal(&j)
			if err != nil {
				return err
			}

			if err := jobBucket.Put([]byte(j.ID), data); err != nil {
				return err
			}

			if err := c.Delete(); err != nil {
				return err
			}

			job = &j
			return nil
		}

		pendingBucket := tx.Bucket(bucketPending)
		c = pendingBucket.Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			jobData := jobBucket.Get(v)
			if jobData == nil {
				c.Delete()
				continue
			}

			var j Job
			if err := json.Unmarshal(jobData, &j); err != nil {
				continue
			}

			j.Status = StatusRunning
			j.UpdatedAt = now

			data, err := json.Marshal(&j)
			if err != nil {
				return err
			}

			if err := jobBucket.Put([]byte(j.ID), data); err != nil {
				return err
			}

			if err := c.Delete(); err != nil {
				return err
			}

			job = &j
			return nil
		}

		return nil
	})

	return job, err
}

// Update updates the job status
func (s *BoltStorage) Update(ctx context.Context, job *Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)

		job.UpdatedAt = time.Now()

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := jobBucket.Put([]byte(job.ID), data); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		if job.Status == StatusDeferred {
			deferredBucket := tx.Bucket(bucketDeferred)
			indexKey := makeIndexKey(job.NextRetryAt, job.ID)
			if err := deferredBucket.Put(indexKey, []byte(job.ID)); err != nil {
				return fmt.Errorf("failed to add to deferred index: %w", err)
			}
		}

		return nil
	})
}

// Get retrieves a job by ID
func (s *BoltStorage) Get(ctx context.Context, id string) (*Job, error) {
	var job *Job

	err := s.db.View(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)
		data := jobBucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		job = &Job{}
		return json.Unmarshal(data, job)
	})

	return job, err
}

// List returns a list of jobs with optional filtering
func (s *BoltStorage) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	var jobs []*Job

	err := s.db.View(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)
		c := jobBucket.Cursor()

		count := 0
		skipped := 0

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job Job
			if err := json.Unmarshal(v, &job); err != nil {
				continue
			}

			if filter.Status != "" && job.Status != filter.Status {
				continue
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			jobs = append(jobs, &job)
			count++

			if filter.Limit > 0 && count >= filter.Limit {
				break
			}
		}

		return nil
	})

	return jobs, err
}

// Delete removes a job from the queue
func (s *BoltStorage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)

		// Get job first to clean up indexes
		data := jobBucket.Get([]byte(id))
		if data != nil {
			var job Job
			if err := json.Unmarshal(data, &job); err == nil {
				pendingBucket := tx.Bucket(bucketPending)
				pendingBucket.Delete(makeIndexKey(job.CreatedAt, job.ID))

				deferredBucket := tx.Bucket(bucketDeferred)
				deferredBucket.Delete(makeIndexKey(job.NextRetryAt, job.ID))
			}
		}

		return jobBucket.Delete([]byte(id))
	})
}

// MoveToDLQ moves a permanently failed job to the dead letter queue
func (s *BoltStorage) MoveToDLQ(ctx context.Context, job *Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		dlqBucket := tx.Bucket(bucketDeadLetter)
		jobBucket := tx.Bucket(bucketJobs)

		job.Status = StatusFailed
		job.UpdatedAt = time.Now()

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		indexKey := makeIndexKey(job.UpdatedAt, job.ID)
		if err := dlqBucket.Put(indexKey, []byte(job.ID)); err != nil {
			return fmt.Errorf("failed to add to DLQ index: %w", err)
		}

		if err := jobBucket.Put([]byte(job.ID), data); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		return nil
	})
}

// ListDLQ returns jobs in the dead letter queue, oldest first
func (s *BoltStorage) ListDLQ(ctx context.Context, limit, offset int) ([]*Job, error) {
	var jobs []*Job

	err := s.db.View(func(tx *bolt.Tx) error {
		dlqBucket := tx.Bucket(bucketDeadLetter)
		jobBucket := tx.Bucket(bucketJobs)
		c := dlqBucket.Cursor()

		count := 0
		skipped := 0

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}

			jobData := jobBucket.Get(v)
			if jobData == nil {
				continue
			}

			var job Job
			if err := json.Unmarshal(jobData, &job); err != nil {
				continue
			}

			jobs = append(jobs, &job)
			count++

			if limit > 0 && count >= limit {
				break
			}
		}

		return nil
	})

	return jobs, err
}

// RetryFromDLQ moves a job from the DLQ back to the pending queue
func (s *BoltStorage) RetryFromDLQ(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		dlqBucket := tx.Bucket(bucketDeadLetter)
		jobBucket := tx.Bucket(bucketJobs)
		pendingBucket := tx.Bucket(bucketPending)

		data := jobBucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("job not found: %s", id)
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		c := dlqBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if string(v) == id {
				if err := c.Delete(); err != nil {
					return err
				}
				break
			}
		}

		job.Status = StatusPending
		job.RetryCount = 0
		job.LastError = ""
		job.UpdatedAt = time.Now()

		newData, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := jobBucket.Put([]byte(id), newData); err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}

		indexKey := makeIndexKey(job.UpdatedAt, job.ID)
		if err := pendingBucket.Put(indexKey, []byte(job.ID)); err != nil {
			return fmt.Errorf("failed to add to pending: %w", err)
		}

		return nil
	})
}

// Stats returns queue statistics
func (s *BoltStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.View(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)
		c := jobBucket.Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job Job
			if err := json.Unmarshal(v, &job); err != nil {
				continue
			}

			stats.Total++
			switch job.Status {
			case StatusPending:
				stats.Pending++
			case StatusRunning:
				stats.Running++
			case StatusDone:
				stats.Done++
			case StatusFailed:
				stats.Failed++
			case StatusDeferred:
				stats.Deferred++
			}
		}

		if dlq := tx.Bucket(bucketDeadLetter); dlq != nil {
			stats.Dead = int64(dlq.Stats().KeyN)
		}

		return nil
	})

	return stats, err
}

// CleanupDone removes completed jobs older than maxAge
func (s *BoltStorage) CleanupDone(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		jobBucket := tx.Bucket(bucketJobs)
		c := jobBucket.Cursor()

		var toDelete [][]byte

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var job Job
			if err := json.Unmarshal(v, &job); err != nil {
				continue
			}

			if job.Status == StatusDone && job.UpdatedAt.Before(cutoff) {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
		}

		for _, k := range toDelete {
			if err := jobBucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}

		return nil
	})

	return deleted, err
}

// Close closes the database connection
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// makeIndexKey creates a sortable key from timestamp and ID
func makeIndexKey(t time.Time, id string) []byte {
	return []byte(t.Format(time.RFC3339Nano) + ":" + id)
}

// parseTimestampFromKey extracts timestamp from index key
func parseTimestampFromKey(key []byte) time.Time {
	s := string(key)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			ts, _ := time.Parse(time.RFC3339Nano, s[:i])
			return ts
		}
	}
	return time.Time{}
}
