// Package ratelimit throttles inbound chat messages per session.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter allows burst messages at once and refills one token every
// interval/burst.
type Limiter struct {
	bucket *rate.Limiter
	now    func() time.Time
}

// New creates a full bucket allowing burst messages per interval.
func New(burst int, interval time.Duration) *Limiter {
	return newWithClock(burst, interval, time.Now)
}

func newWithClock(burst int, interval time.Duration, now func() time.Time) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	return &Limiter{
		bucket: rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst),
		now:    now,
	}
}

// Allow consumes a token and reports whether one was available.
func (l *Limiter) Allow() bool {
	return l.bucket.AllowN(l.now(), 1)
}
