// Package ratelimit implements the Bandwidth Limiter (spec §4.6): a
// token bucket whose capacity tracks one second of the configured
// rate, with blocking, non-blocking, and dynamic-rate-change acquire
// semantics.
package ratelimit

import (
	"sync"
	"time"

	"github.com/kcenon/ftscore/internal/observability"
)

// TokenBucket gates throughput to a configured rate in bytes/second.
// Capacity always equals one second of the current rate; changing the
// rate adjusts capacity without moving the current token count.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64 // tokens (bytes) per second; 0 disables limiting
	available  float64
	lastRefill time.Time

	// Metrics, if set, records Acquire wait time and the configured
	// limit as the bandwidth-limiter gauges/histogram.
	Metrics *observability.Metrics
}

// NewTokenBucket constructs a bucket at the given rate, starting full.
func NewTokenBucket(rate float64) *TokenBucket {
	tb := &TokenBucket{rate: rate, lastRefill: time.Now()}
	tb.available = tb.capacityLocked()
	return tb
}

func (tb *TokenBucket) capacityLocked() float64 {
	return tb.rate
}

func (tb *TokenBucket) refillLocked(now time.Time) {
	if tb.rate <= 0 {
		return
	}
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.available += elapsed * tb.rate
	if cap := tb.capacityLocked(); tb.available > cap {
		tb.available = cap
	}
	tb.lastRefill = now
}

// Acquire deducts n tokens, blocking until enough have accrued if the
// bucket is currently short. A disabled limiter (rate == 0) returns
// immediately.
func (tb *TokenBucket) Acquire(n float64) {
	tb.mu.Lock()
	if tb.rate <= 0 {
		tb.mu.Unlock()
		return
	}
	tb.refillLocked(time.Now())
	tb.available -= n
	deficit := -tb.available
	rate := tb.rate
	metrics := tb.Metrics
	tb.mu.Unlock()

	if deficit > 0 {
		wait := time.Duration(deficit / rate * float64(time.Second))
		time.Sleep(wait)
		if metrics != nil {
			metrics.RecordLimiterWait(wait.Seconds(), rate)
		}
	}
}

// TryAcquire deducts n tokens without blocking, returning false (and
// leaving the bucket untouched) if fewer than n are available. A
// disabled limiter always succeeds.
func (tb *TokenBucket) TryAcquire(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.rate <= 0 {
		return true
	}
	tb.refillLocked(time.Now())
	if tb.available >= n {
		tb.available -= n
		return true
	}
	return false
}

// SetLimit atomically changes the rate. rate == 0 disables the
// limiter (all acquires return immediately). The current token count
// is left unchanged; only capacity tracks the new rate on future
// refills.
func (tb *TokenBucket) SetLimit(rate float64) {
	tb.mu.Lock()
	tb.rate = rate
	if cap := tb.capacityLocked(); tb.available > cap {
		tb.available = cap
	}
	metrics := tb.Metrics
	tb.mu.Unlock()

	if metrics != nil {
		metrics.BandwidthLimitBytes.Set(rate)
	}
}

// Reset refills the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.available = tb.capacityLocked()
	tb.lastRefill = time.Now()
}
