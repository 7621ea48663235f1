package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func makeJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{ID: string(rune('a' + i)), LocalPath: "/tmp/x"}
	}
	return jobs
}

func TestRunContinueOnErrorRunsEveryJob(t *testing.T) {
	jobs := makeJobs(6)
	var ran int32

	o := New(2)
	results, err := o.Run(context.Background(), jobs, ContinueOnError, func(ctx context.Context, j Job) error {
		atomic.AddInt32(&ran, 1)
		if j.ID == "c" {
			return errors.New("boom")
		}
		return nil
	}, nil)

	if err == nil {
		t.Fatal("expected aggregate error when a job fails")
	}
	if int(ran) != len(jobs) {
		t.Errorf("ContinueOnError should run every job, ran=%d want=%d", ran, len(jobs))
	}
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Job.ID != jobs[i].ID {
			t.Errorf("results[%d] out of input order: got %s want %s", i, r.Job.ID, jobs[i].ID)
		}
	}
}

func TestRunStopOnErrorCancelsRemaining(t *testing.T) {
	jobs := makeJobs(20)
	var ran int32

	o := New(1) // single worker so StopOnError is deterministic
	_, err := o.Run(context.Background(), jobs, StopOnError, func(ctx context.Context, j Job) error {
		atomic.AddInt32(&ran, 1)
		if j.ID == "b" {
			return errors.New("boom")
		}
		return nil
	}, nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if int(ran) >= len(jobs) {
		t.Errorf("StopOnError should not have run every job, ran=%d", ran)
	}
}

func TestRunEmitsProgressInCompletionOrder(t *testing.T) {
	jobs := makeJobs(4)
	progress := make(chan Progress, len(jobs))

	o := New(4)
	_, err := o.Run(context.Background(), jobs, ContinueOnError, func(ctx context.Context, j Job) error {
		return nil
	}, progress)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := 0
	for p := range progress {
		seen++
		if p.Completed != seen {
			t.Errorf("Progress.Completed = %d, want %d", p.Completed, seen)
		}
		if p.Total != len(jobs) {
			t.Errorf("Progress.Total = %d, want %d", p.Total, len(jobs))
		}
	}
	if seen != len(jobs) {
		t.Errorf("expected %d progress events, got %d", len(jobs), seen)
	}
}

func TestRunRespectsMaxConcurrent(t *testing.T) {
	jobs := makeJobs(10)
	var inFlight, maxInFlight int32

	o := New(3)
	_, err := o.Run(context.Background(), jobs, ContinueOnError, func(ctx context.Context, j Job) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if maxInFlight > 3 {
		t.Errorf("observed %d concurrent jobs, want <= 3", maxInFlight)
	}
}

func TestRunEmptyJobList(t *testing.T) {
	o := New(4)
	results, err := o.Run(context.Background(), nil, ContinueOnError, func(ctx context.Context, j Job) error {
		t.Fatal("run should not be called for an empty job list")
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}
