// Package jobs runs queued session jobs on a fixed pool of workers. The only
// coordination between workers is the store's atomic claim.
package jobs

import (
	"math"
	"time"
)

// Backoff computes idle poll delays: Base * Multiplier^n, capped at Max.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff returns the stock poll schedule.
func DefaultBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Multiplier: 1.5, Max: 30 * time.Second}
}

// Delay returns the wait after n consecutive empty polls.
func (b Backoff) Delay(n int) time.Duration {
	if b.Base <= 0 {
		b = DefaultBackoff()
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if n <= 0 {
		return b.Base
	}
	d := float64(b.Base) * math.Pow(b.Multiplier, float64(n))
	if d >= float64(b.Max) || math.IsInf(d, 1) {
		return b.Max
	}
	return time.Duration(d)
}
