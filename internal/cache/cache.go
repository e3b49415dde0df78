// Package cache provides the key/value store that sits in front of the
// user table for authentication lookups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Store is a string key/value cache with per-key expiry.
// A ttl of zero means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Incr atomically increments the integer at key, starting from zero,
	// and returns the new value. Counters never expire.
	Incr(ctx context.Context, key string) (int64, error)
	// CompareAndSet stores value under key only while guardKey still holds
	// guardValue, an absent guard reading as "". It reports whether the
	// value was stored.
	CompareAndSet(ctx context.Context, guardKey, guardValue, key, value string, ttl time.Duration) (bool, error)
	Close() error
}
