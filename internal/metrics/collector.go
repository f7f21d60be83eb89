package metrics

import (
	"context"
	"time"
)

// QueueStatsFunc returns the current pending, deferred, and dead-lettered
// job counts.
type QueueStatsFunc func(ctx context.Context) (pending, deferred, dead int64, err error)

// StartQueueCollector polls fn on the given interval and mirrors the
// counts into the queue gauges until ctx is cancelled.
func (m *Metrics) StartQueueCollector(ctx context.Context, interval time.Duration, fn QueueStatsFunc) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pending, deferred, dead, err := fn(ctx)
				if err != nil {
					continue
				}
				m.QueuePending.Set(float64(pending))
				m.QueueDeferred.Set(float64(deferred))
				m.QueueDead.Set(float64(dead))
			}
		}
	}()
}
