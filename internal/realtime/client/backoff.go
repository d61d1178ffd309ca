package client

import "time"

// Backoff doubles from Base per attempt, capped at Max. MaxAttempts <= 0
// retries forever.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second, MaxAttempts: 10}
}

// Delay returns the wait before the attempt-th retry, counting from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if b.Max > 0 && sleep >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && sleep > b.Max {
		return b.Max
	}
	return sleep
}

// Exhausted reports whether attempts used up the budget.
func (b Backoff) Exhausted(attempts int) bool {
	return b.MaxAttempts > 0 && attempts >= b.MaxAttempts
}
