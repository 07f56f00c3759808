// Package gen holds the shared remote-generation job lifecycle: job status
// tracking, the fixed-interval completion waiter, and the error taxonomy
// used by every provider integration.
package gen

import (
	"context"
	"time"
)

// Status is a provider-neutral job state. Jobs only move forward:
// pending -> running -> succeeded|failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is a provider-side asynchronous unit of generation work.
type Job struct {
	ID       string
	Status   Status
	Progress int // 0-100, or -1 when the provider does not report progress
	Err      string
}

// PollFunc issues one status-check request. Each call is independently
// fallible; a poll error aborts the wait.
type PollFunc func(ctx context.Context) (Job, error)

const defaultPollInterval = 5 * time.Second

// WaitOptions configures Wait. A zero Timeout waits indefinitely.
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnPoll is invoked after each non-terminal poll, for progress display.
	OnPoll func(Job)
}

// Wait polls until the job reaches a terminal status. It returns the final
// Job on success, or a *GenerationError when the job failed. The first poll
// is issued immediately; no poll is issued after a terminal status has been
// observed.
func Wait(ctx context.Context, poll PollFunc, opts WaitOptions) (Job, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := poll(ctx)
		if err != nil {
			return job, err
		}
		switch job.Status {
		case StatusSucceeded:
			return job, nil
		case StatusFailed:
			msg := job.Err
			if msg == "" {
				msg = "unknown error"
			}
			return job, &GenerationError{JobID: job.ID, Message: msg}
		}
		if opts.OnPoll != nil {
			opts.OnPoll(job)
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
