package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Budget is a fixed-window send allowance. Robot webhooks such as DingTalk
// drop a sender that posts more than 20 messages a minute.
type Budget struct {
	mu        sync.Mutex
	capacity  int
	remaining int
	window    time.Duration
	start     time.Time
	now       func() time.Time
}

// NewBudget allows perMinute sends per minute. perMinute <= 0 is unlimited.
func NewBudget(perMinute int) *Budget {
	return newBudget(perMinute, time.Minute, time.Now)
}

func newBudget(capacity int, window time.Duration, now func() time.Time) *Budget {
	return &Budget{
		capacity:  capacity,
		remaining: capacity,
		window:    window,
		start:     now(),
		now:       now,
	}
}

// Take spends n tokens from the current window. When the window cannot
// cover n it reports how long until the next one opens.
func (b *Budget) Take(n int) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.start) >= b.window {
		b.start = now
		b.remaining = b.capacity
	}
	if b.remaining >= n {
		b.remaining -= n
		return 0, true
	}
	return b.start.Add(b.window).Sub(now), false
}

// Wait blocks until n tokens are spent or ctx is done.
func (b *Budget) Wait(ctx context.Context, n int) error {
	if b.capacity <= 0 {
		return nil
	}
	if n > b.capacity {
		return fmt.Errorf("%d tokens exceed a budget of %d per window", n, b.capacity)
	}
	for {
		wait, ok := b.Take(n)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
