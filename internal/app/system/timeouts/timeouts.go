// Package timeouts centralizes context timeouts for database and storage
// operations so individual stores do not hard-code their own durations.
package timeouts

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
)

// Ping is for liveness checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short is for single-document reads and writes.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium is for multi-document queries.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long is for cascades and storage-backend round trips.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Set overrides all timeout tiers. Zero values leave a tier unchanged.
// Intended for startup configuration, not per-request tuning.
func Set(p, s, m, l time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if p > 0 {
		ping = p
	}
	if s > 0 {
		short = s
	}
	if m > 0 {
		medium = m
	}
	if l > 0 {
		long = l
	}
}

// WithShort returns a context bounded by the short timeout.
func WithShort(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, Short())
}

// WithLong returns a context bounded by the long timeout.
func WithLong(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, Long())
}
