package protocol

import (
	"time"

	"github.com/kcenon/ftscore/internal/ftsconfig"
)

// Backoff computes successive reconnect delays under a bounded
// exponential policy (supplemented feature, grounded on
// original_source/examples/auto_reconnect.cpp's policy fields:
// max_attempts, initial_delay, max_delay, backoff_multiplier).
type Backoff struct {
	policy  ftsconfig.ReconnectPolicy
	attempt int
}

// NewBackoff constructs a Backoff at attempt 0.
func NewBackoff(policy ftsconfig.ReconnectPolicy) *Backoff {
	return &Backoff{policy: policy}
}

// Next returns the delay before the next reconnect attempt and
// whether an attempt is still permitted. ok is false once MaxAttempts
// has been exhausted.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	if b.attempt >= b.policy.MaxAttempts {
		return 0, false
	}
	delay = time.Duration(float64(b.policy.InitialDelay) * pow(b.policy.Multiplier, b.attempt))
	if delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}
	b.attempt++
	return delay, true
}

// Reset zeroes the attempt counter, e.g. after a successful reconnect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of attempts made so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
