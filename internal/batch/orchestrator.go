// Package batch runs a set of independent transfers with bounded
// concurrency, combining their progress into a single stream of events
// and collecting a per-job result vector in submission order.
package batch

import (
	"context"
	"sync"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

// Policy controls how the orchestrator reacts to an individual job
// failing.
type Policy int

const (
	// ContinueOnError lets the remaining jobs run to completion even if
	// one fails.
	ContinueOnError Policy = iota
	// StopOnError cancels outstanding and not-yet-started jobs on the
	// first failure.
	StopOnError
)

// Job is one file to transfer as part of a batch. Direction is implied
// by the Run function the caller passes in (the orchestrator has no
// notion of upload vs. download).
type Job struct {
	ID         string
	LocalPath  string
	RemoteName string
}

// Result is a completed job's outcome, returned in the same order the
// jobs were submitted.
type Result struct {
	Job Job
	Err error
}

// Progress is emitted on every job completion, carrying enough state
// for a caller to render both a per-file and an aggregate counter.
type Progress struct {
	Completed int
	Total     int
	Job       Job
	Err       error
}

// RunFunc performs a single job's transfer. It must honor ctx
// cancellation.
type RunFunc func(ctx context.Context, job Job) error

// Orchestrator runs a batch of jobs with at most maxConcurrent running
// at any moment.
type Orchestrator struct {
	maxConcurrent int
}

// New builds an Orchestrator. maxConcurrent <= 0 is clamped to 1.
func New(maxConcurrent int) *Orchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Orchestrator{maxConcurrent: maxConcurrent}
}

// Run feeds jobs to up to maxConcurrent workers pulling from a shared
// queue, applying policy on failure, and returns the per-job results in
// input order. progress, if non-nil, receives one Progress per
// completed job; Run closes it before returning.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job, policy Policy, run RunFunc, progress chan<- Progress) ([]Result, error) {
	if progress != nil {
		defer close(progress)
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(jobs))
	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	var (
		mu        sync.Mutex
		completed int
		firstErr  error
	)

	workers := o.maxConcurrent
	if workers > len(jobs) {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range queue {
				select {
				case <-ctx.Done():
					results[idx] = Result{Job: jobs[idx], Err: ctx.Err()}
					recordProgress(&mu, &completed, len(jobs), progress, results[idx])
					continue
				default:
				}

				err := run(ctx, jobs[idx])
				results[idx] = Result{Job: jobs[idx], Err: err}

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
					if policy == StopOnError {
						cancel()
					}
				}
				mu.Unlock()

				recordProgress(&mu, &completed, len(jobs), progress, results[idx])
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return results, ftserrors.Wrap(ftserrors.KindInternalError, "batch: at least one job failed", firstErr)
	}
	return results, nil
}

func recordProgress(mu *sync.Mutex, completed *int, total int, progress chan<- Progress, r Result) {
	mu.Lock()
	defer mu.Unlock()
	*completed++
	c := *completed

	if progress != nil {
		progress <- Progress{Completed: c, Total: total, Job: r.Job, Err: r.Err}
	}
}
