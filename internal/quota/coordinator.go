// Package quota tracks storage usage for a storage directory against a
// configurable quota and a per-file maximum size, with atomic
// reserve/commit/release accounting shared across concurrent transfers.
package quota

import (
	"strings"
	"sync"

	"github.com/kcenon/ftscore/internal/ftserrors"
	"github.com/kcenon/ftscore/internal/observability"
)

// Usage is a point-in-time snapshot of the coordinator's accounting.
type Usage struct {
	UsedBytes    int64
	FileCount    int
	UsagePercent float64
}

// ThresholdFunc is invoked once per threshold crossing, with the
// fraction (0..1) that was crossed and the usage percent observed.
type ThresholdFunc func(threshold, usagePercent float64)

// Coordinator guards storage accounting for one storage directory.
type Coordinator struct {
	mu sync.Mutex

	quota       int64 // 0 == unlimited
	maxFileSize int64

	reserved  int64
	committed int64
	fileCount int

	thresholds []float64
	crossed    map[float64]bool
	onCross    ThresholdFunc

	// Metrics, if set, mirrors usage into the quota gauges and labels
	// reserve/commit/release outcomes as storage operations.
	Metrics *observability.Metrics
}

// New builds a Coordinator. quota <= 0 means unlimited; maxFileSize <= 0
// means no per-file cap.
func New(quota, maxFileSize int64, thresholds []float64) *Coordinator {
	return &Coordinator{
		quota:       quota,
		maxFileSize: maxFileSize,
		thresholds:  append([]float64(nil), thresholds...),
		crossed:     make(map[float64]bool),
	}
}

// OnThresholdCrossed registers the callback fired the first time usage
// crosses each configured threshold; it does not fire again for the
// same threshold until Reset.
func (c *Coordinator) OnThresholdCrossed(fn ThresholdFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCross = fn
}

// ValidateFilename rejects path-traversal, absolute-path, and
// null-byte filenames before they ever reach the filesystem layer.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ftserrors.New(ftserrors.KindInvalidFilePath, "empty filename")
	}
	if strings.ContainsRune(filename, 0) {
		return ftserrors.New(ftserrors.KindInvalidFilePath, "filename contains a null byte")
	}
	if strings.Contains(filename, "..") {
		return ftserrors.New(ftserrors.KindInvalidFilePath, "filename contains a path traversal segment")
	}
	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		return ftserrors.New(ftserrors.KindInvalidFilePath, "filename must be relative")
	}
	if len(filename) >= 2 && filename[1] == ':' {
		return ftserrors.New(ftserrors.KindInvalidFilePath, "filename must be relative")
	}
	return nil
}

// Reserve atomically checks filename safety, the per-file size cap, and
// remaining quota, then reserves size bytes against the quota on
// success. Callers must pair a successful Reserve with exactly one
// Commit or Release of the same size.
func (c *Coordinator) Reserve(filename string, size int64) error {
	if err := ValidateFilename(filename); err != nil {
		return err
	}
	if c.maxFileSize > 0 && size > c.maxFileSize {
		return ftserrors.New(ftserrors.KindFileTooLarge, "file exceeds maximum allowed size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quota > 0 && c.reserved+c.committed+size > c.quota {
		c.recordOpLocked("reserve", "denied")
		return ftserrors.New(ftserrors.KindQuotaExceeded, "reserving this file would exceed storage quota")
	}

	c.reserved += size
	c.checkThresholdsLocked()
	c.recordOpLocked("reserve", "ok")
	c.publishUsageLocked()
	return nil
}

// Commit moves size bytes from reserved to committed after a finalized
// write, and counts one more file against the coordinator.
func (c *Coordinator) Commit(filename string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reserved -= size
	if c.reserved < 0 {
		c.reserved = 0
	}
	c.committed += size
	c.fileCount++
	c.checkThresholdsLocked()
	c.recordOpLocked("commit", "ok")
	c.publishUsageLocked()
}

// Release returns size bytes to the quota after a failed or cancelled
// transfer that had previously reserved them.
func (c *Coordinator) Release(size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reserved -= size
	if c.reserved < 0 {
		c.reserved = 0
	}
	c.recordOpLocked("release", "ok")
	c.publishUsageLocked()
}

// Usage returns the current accounting snapshot.
func (c *Coordinator) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Usage{
		UsedBytes:    c.reserved + c.committed,
		FileCount:    c.fileCount,
		UsagePercent: c.usagePercentLocked(),
	}
}

// Reset clears which thresholds have already fired, letting them fire
// again on the next crossing.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crossed = make(map[float64]bool)
}

func (c *Coordinator) usagePercentLocked() float64 {
	if c.quota <= 0 {
		return 0
	}
	return float64(c.reserved+c.committed) / float64(c.quota) * 100
}

func (c *Coordinator) checkThresholdsLocked() {
	if c.onCross == nil || c.quota <= 0 {
		return
	}
	used := float64(c.reserved+c.committed) / float64(c.quota)
	for _, t := range c.thresholds {
		if used >= t && !c.crossed[t] {
			c.crossed[t] = true
			c.onCross(t, c.usagePercentLocked())
		}
	}
}

func (c *Coordinator) recordOpLocked(operation, result string) {
	if c.Metrics != nil {
		c.Metrics.RecordStorageOperation(operation, result)
	}
}

func (c *Coordinator) publishUsageLocked() {
	if c.Metrics != nil {
		c.Metrics.SetQuotaUsage(c.reserved+c.committed, c.usagePercentLocked())
	}
}
