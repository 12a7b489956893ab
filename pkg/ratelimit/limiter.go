package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterStore hands out one token bucket per key.
type LimiterStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	burst    int
}

func NewLimiterStore(r rate.Limit, burst int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// PerMinute builds a store allowing n events per minute per key, all of
// which may be spent at once.
func PerMinute(n int) *LimiterStore {
	if n <= 0 {
		return NewLimiterStore(rate.Inf, 0)
	}
	return NewLimiterStore(rate.Limit(float64(n)/60), n)
}

func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists := s.limiters[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(s.r, s.burst)
	s.limiters[key] = limiter
	return limiter
}

func (s *LimiterStore) Allow(key string) bool {
	return s.GetLimiter(key).Allow()
}
