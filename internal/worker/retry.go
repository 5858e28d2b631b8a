package worker

import "time"

// RetryPolicy controls how failed effect tasks are rescheduled. Zero
// fields fall back to one second apart, doubling, five attempts.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Exhausted reports whether a task on the given attempt (1-based) has
// used up its retry budget.
func (r RetryPolicy) Exhausted(attempt int) bool {
	limit := r.MaxRetries
	if limit <= 0 {
		limit = 5
	}
	return attempt >= limit
}

// NextDelay returns the backoff before the given attempt (1-based),
// clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= factor
		if r.MaxDelay > 0 && d >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}
	out := time.Duration(d)
	if out <= 0 {
		out = time.Second
	}
	return out
}
