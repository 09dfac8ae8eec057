package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"courier-dispatch/internal/core/ports"
)

// RateLimitStore implements ports.RateLimitStore with in-process fixed windows.
type RateLimitStore struct {
	mu       sync.Mutex
	counters map[string]int64
	now      func() time.Time
}

// NewRateLimitStore creates an in-memory rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{counters: make(map[string]int64), now: time.Now}
}

// Allow counts a request for key in the current window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	seconds := int64(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	windowID := s.now().Unix() / seconds
	counterKey := fmt.Sprintf("%s:%d", key, windowID)

	s.mu.Lock()
	s.counters[counterKey]++
	count := s.counters[counterKey]
	// drop counters from previous windows
	prev := fmt.Sprintf("%s:%d", key, windowID-1)
	delete(s.counters, prev)
	s.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * seconds,
	}, nil
}
