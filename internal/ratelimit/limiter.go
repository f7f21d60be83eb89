package ratelimit

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketWindows = []byte("rate_limit_windows")

// Window is the fixed accounting interval.
const Window = time.Minute

// Config controls request budgets. Zero limits disable the matching check.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// PerAccountPerMinute caps requests per account per window.
	PerAccountPerMinute uint64 `yaml:"per_account_per_minute"`
	// GlobalPerMinute caps requests across all accounts per window.
	GlobalPerMinute uint64 `yaml:"global_per_minute"`
}

// Limiter enforces fixed-window request budgets. Counters are persisted
// in bbolt so restarts do not reset budgets mid-window.
type Limiter struct {
	db  *bolt.DB
	cfg Config
}

// New opens the limiter database at cfg.Path, creating directories as needed.
func New(cfg Config) (*Limiter, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rate limit directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open rate limit database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketWindows)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rate limit bucket: %w", err)
	}

	return &Limiter{db: db, cfg: cfg}, nil
}

// Allow reports whether the account may make another request in the
// current window. Allowed requests are counted, rejected ones are not.
func (l *Limiter) Allow(accountID string) (bool, error) {
	return l.allowAt(accountID, time.Now())
}

func (l *Limiter) allowAt(accountID string, now time.Time) (bool, error) {
	window := now.Truncate(Window).Unix()
	globalKey := windowKey("global", window)
	accountKey := windowKey("account:"+accountID, window)

	allowed := false
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWindows)

		globalCount := readCount(b, globalKey)
		if l.cfg.GlobalPerMinute > 0 && globalCount >= l.cfg.GlobalPerMinute {
			return nil
		}
		accountCount := readCount(b, accountKey)
		if l.cfg.PerAccountPerMinute > 0 && accountCount >= l.cfg.PerAccountPerMinute {
			return nil
		}

		if err := writeCount(b, globalKey, globalCount+1); err != nil {
			return err
		}
		if err := writeCount(b, accountKey, accountCount+1); err != nil {
			return err
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update rate limit counters: %w", err)
	}
	return allowed, nil
}

// Cleanup drops counters for windows that ended before the cutoff.
// Expired windows never influence Allow, this only reclaims space.
func (l *Limiter) Cleanup(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Truncate(Window).Unix()

	removed := 0
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWindows)
		c := b.Cursor()

		var stale [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if keyWindow(k) < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limit windows: %w", err)
	}
	return removed, nil
}

// Close closes the limiter database.
func (l *Limiter) Close() error {
	return l.db.Close()
}

// windowKey layout: 8-byte big-endian window start, then the scope.
// The window prefix keeps cursor scans in chronological order.
func windowKey(scope string, window int64) []byte {
	key := make([]byte, 8+len(scope))
	binary.BigEndian.PutUint64(key, uint64(window))
	copy(key[8:], scope)
	return key
}

func keyWindow(key []byte) int64 {
	if len(key) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(key))
}

func readCount(b *bolt.Bucket, key []byte) uint64 {
	v := b.Get(key)
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func writeCount(b *bolt.Bucket, key []byte, count uint64) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, count)
	return b.Put(key, v)
}
