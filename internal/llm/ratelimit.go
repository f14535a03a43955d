package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter spaces oracle calls to the provider's requests-per-minute
// budget. The bucket starts full and refills continuously from elapsed time,
// so no background goroutine is needed.
type rateLimiter struct {
	now      func() time.Time
	last     time.Time
	tokens   float64
	capacity float64
	interval time.Duration
	mu       sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	rl := &rateLimiter{
		now:      time.Now,
		capacity: float64(requestsPerMinute),
		tokens:   float64(requestsPerMinute),
		interval: time.Minute / time.Duration(requestsPerMinute),
	}
	rl.last = rl.now()
	return rl
}

// reserve takes a token if one is available and returns zero, or returns how
// long until the next token without taking anything.
func (rl *rateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.last); elapsed > 0 {
		rl.tokens += float64(elapsed) / float64(rl.interval)
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.last = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return 0
	}
	return time.Duration((1 - rl.tokens) * float64(rl.interval))
}

// wait blocks until a token is taken or ctx is done.
func (rl *rateLimiter) wait(ctx context.Context) error {
	for {
		delay := rl.reserve()
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
