package backoff

import (
	"math/rand"
	"time"
)

// Default reconnection limits.
const (
	DefaultMaxAttempts = 10
	DefaultDelay       = 1000 * time.Millisecond
)

// Policy decides whether a reconnection attempt should be made and how long
// to wait before making it. Attempts are numbered from 1.
type Policy interface {
	Next(attempt int) (time.Duration, bool)
}

// Fixed waits the same delay before every attempt, up to MaxAttempts.
type Fixed struct {
	MaxAttempts int
	Delay       time.Duration
}

// NewFixed returns the default fixed policy (10 attempts, 1s apart).
func NewFixed() Fixed {
	return Fixed{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

func (f Fixed) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > f.MaxAttempts {
		return 0, false
	}
	return f.Delay, true
}

// Exponential doubles the delay on every attempt starting at Initial, caps it
// at Max and spreads it by +/- Jitter (a fraction of the delay).
type Exponential struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Jitter      float64

	// rand returns a value in [0,1); nil uses math/rand.
	rand func() float64
}

// NewExponential builds an exponential policy. A jitter outside [0,1] is clamped.
func NewExponential(maxAttempts int, initial, max time.Duration, jitter float64) *Exponential {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if max < initial {
		max = initial
	}
	return &Exponential{MaxAttempts: maxAttempts, Initial: initial, Max: max, Jitter: jitter}
}

func (e *Exponential) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > e.MaxAttempts {
		return 0, false
	}

	delay := e.Initial
	for i := 1; i < attempt && delay < e.Max; i++ {
		delay *= 2
	}
	if delay > e.Max {
		delay = e.Max
	}

	if e.Jitter > 0 {
		r := e.rand
		if r == nil {
			r = rand.Float64
		}
		spread := float64(delay) * e.Jitter
		delay = time.Duration(float64(delay) - spread + 2*spread*r())
	}
	return delay, true
}
