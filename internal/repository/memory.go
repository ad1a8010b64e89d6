package repository

import (
	"context"
	"sync"
	"time"
)

type MemoryRateLimiter struct {
	mu      sync.Mutex
	entries map[int64]*rateLimitEntry
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{entries: make(map[int64]*rateLimitEntry)}
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryRateLimiter) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.entries[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.entries[userID] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}
