package fec

import (
	"sync"
	"time"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// PolicyState is a snapshot of the adaptive policy's current decision.
type PolicyState struct {
	Enabled   bool
	K         int     // data shards per window
	R         int     // parity shards per window
	LossRate  float64 // smoothed loss rate, percent
	UpdatedAt time.Time
}

// AdaptivePolicy watches reported chunk loss rate and decides whether FEC
// should be on and how many parity shards each Window should carry. It
// does not touch the wire itself: a caller reads the decision with
// GetParameters and feeds loss observations back through Update. No
// transfer coordinator in this module calls it.
type AdaptivePolicy struct {
	// Configuration
	enableThreshold  float64       // Loss rate to enable FEC (%)
	disableThreshold float64       // Loss rate to disable FEC (%)
	minObservation   time.Duration // Minimum observation time before changes
	defaultK         int           // Default data shards
	defaultR         int           // Default parity shards
	maxR             int           // Maximum parity shards

	// State
	enabled         bool
	currentK        int
	currentR        int
	lossRateSamples []float64
	lastStateChange time.Time
	sampleStartTime time.Time

	mu sync.RWMutex
}

// PolicyConfig holds adaptive policy configuration
type PolicyConfig struct {
	EnableThreshold  float64       // Default: 1.0%
	DisableThreshold float64       // Default: 0.5%
	MinObservation   time.Duration // Default: 30s
	DefaultK         int           // Default: 8
	DefaultR         int           // Default: 2
	MaxR             int           // Default: 4
}

// DefaultPolicyConfig returns default policy configuration
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		EnableThreshold:  1.0,
		DisableThreshold: 0.5,
		MinObservation:   30 * time.Second,
		DefaultK:         8,
		DefaultR:         2,
		MaxR:             4,
	}
}

// NewAdaptivePolicy creates a new adaptive FEC policy
func NewAdaptivePolicy(config PolicyConfig) *AdaptivePolicy {
	return &AdaptivePolicy{
		enableThreshold:  config.EnableThreshold,
		disableThreshold: config.DisableThreshold,
		minObservation:   config.MinObservation,
		defaultK:         config.DefaultK,
		defaultR:         config.DefaultR,
		maxR:             config.MaxR,
		enabled:          false,
		currentK:         config.DefaultK,
		currentR:         config.DefaultR,
		lossRateSamples:  make([]float64, 0, 60), // 60 samples max
		lastStateChange:  time.Now(),
		sampleStartTime:  time.Now(),
	}
}

// Update records an observed chunk loss rate and re-evaluates whether FEC
// should be enabled, disabled, or have its parity count adjusted.
func (ap *AdaptivePolicy) Update(lossRate float64) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.lossRateSamples = append(ap.lossRateSamples, lossRate)

	// keep only the last 60 samples (10 minutes at 10-second intervals)
	if len(ap.lossRateSamples) > 60 {
		ap.lossRateSamples = ap.lossRateSamples[1:]
	}

	avgLoss := ap.calculateAverageLoss()

	timeSinceChange := time.Since(ap.lastStateChange)
	if timeSinceChange < ap.minObservation {
		return
	}

	if !ap.enabled && avgLoss > ap.enableThreshold {
		ap.enabled = true
		ap.currentR = ap.defaultR
		ap.lastStateChange = time.Now()
	} else if ap.enabled && avgLoss < ap.disableThreshold {
		if timeSinceChange >= ap.minObservation*10 {
			ap.enabled = false
			ap.lastStateChange = time.Now()
		}
	} else if ap.enabled {
		if avgLoss > 5.0 && ap.currentR < ap.maxR {
			ap.currentR = 4
			ap.lastStateChange = time.Now()
		} else if avgLoss > 3.0 && ap.currentR < 3 {
			ap.currentR = 3
			ap.lastStateChange = time.Now()
		} else if avgLoss < 2.0 && ap.currentR > ap.defaultR {
			ap.currentR = ap.defaultR
			ap.lastStateChange = time.Now()
		}
	}
}

// GetParameters returns whether FEC is enabled and the current (k, r),
// suitable for passing straight to NewWindow.
func (ap *AdaptivePolicy) GetParameters() (enabled bool, k, r int) {
	ap.mu.RLock()
	defer ap.mu.RUnlock()
	return ap.enabled, ap.currentK, ap.currentR
}

// GetState returns a snapshot of the policy's current state.
func (ap *AdaptivePolicy) GetState() PolicyState {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	return PolicyState{
		Enabled:   ap.enabled,
		K:         ap.currentK,
		R:         ap.currentR,
		LossRate:  ap.calculateAverageLoss(),
		UpdatedAt: time.Now(),
	}
}

// SetEnabled overrides the policy's enable/disable decision, e.g. from an
// operator-set configuration flag.
func (ap *AdaptivePolicy) SetEnabled(enabled bool) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.enabled = enabled
	ap.lastStateChange = time.Now()
}

// SetParityShards overrides the current parity shard count.
func (ap *AdaptivePolicy) SetParityShards(r int) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if r < 1 || r > ap.maxR {
		return ftserrors.New(ftserrors.KindInvalidConfiguration, "fec parity shard count out of range")
	}

	ap.currentR = r
	ap.lastStateChange = time.Now()
	return nil
}

// calculateAverageLoss computes an exponential moving average (alpha=0.3)
// over the recent loss rate samples.
func (ap *AdaptivePolicy) calculateAverageLoss() float64 {
	if len(ap.lossRateSamples) == 0 {
		return 0
	}

	alpha := 0.3
	ema := ap.lossRateSamples[0]

	for i := 1; i < len(ap.lossRateSamples); i++ {
		ema = alpha*ap.lossRateSamples[i] + (1-alpha)*ema
	}

	return ema
}

// Reset returns the policy to its initial disabled state.
func (ap *AdaptivePolicy) Reset() {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	ap.enabled = false
	ap.currentR = ap.defaultR
	ap.lossRateSamples = make([]float64, 0, 60)
	ap.lastStateChange = time.Now()
	ap.sampleStartTime = time.Now()
}
