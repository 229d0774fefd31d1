// Package poll drives long-running remote operations to completion with a
// fixed interval and a bounded number of attempts.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is the caller-visible lifecycle of a polled task.
type State int

const (
	Pending State = iota
	Processing
	Completed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case TimedOut:
		return "timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTaskNotFound is returned when the task is absent from a status listing
// and RetryNotFound is disabled.
var ErrTaskNotFound = errors.New("task not found in status listing")

// TimeoutError is returned when the attempt budget is exhausted.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	Last     State
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling timed out after %d attempts (%s), last state %s", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

// Observation is what one status check saw.
type Observation[T any] struct {
	// Found is false when the task was missing from the listing.
	Found bool
	// Code is the remote status code; it only counts when Found.
	Code     int
	Snapshot T
}

// Check performs one status request.
type Check[T any] func(ctx context.Context) (Observation[T], error)

// Attempt is passed to the OnAttempt hook after each check.
type Attempt struct {
	Number  int
	State   State
	Code    int
	Found   bool
	Elapsed time.Duration
}

// Options bounds a polling run.
type Options struct {
	Interval      time.Duration
	MaxAttempts   int
	SuccessCodes  []int
	RetryNotFound bool
	// OnAttempt, when set, is called synchronously after every check.
	OnAttempt func(Attempt)
}

// DefaultSuccessCodes are the research codes for "done" and "done and
// imported".
var DefaultSuccessCodes = []int{2, 6}

// DefaultOptions mirrors the service's research cadence: 5s for up to 60
// attempts.
func DefaultOptions() Options {
	return Options{
		Interval:      5 * time.Second,
		MaxAttempts:   60,
		SuccessCodes:  DefaultSuccessCodes,
		RetryNotFound: true,
	}
}

// Poll sleeps Interval, runs check, and repeats until the observed code is a
// success code, check fails, ctx is done, or MaxAttempts checks have run.
// Errors from check are returned unchanged.
func Poll[T any](ctx context.Context, check Check[T], opts Options) (T, error) {
	var zero T
	if opts.MaxAttempts <= 0 {
		return zero, fmt.Errorf("poll: MaxAttempts must be positive, got %d", opts.MaxAttempts)
	}
	if len(opts.SuccessCodes) == 0 {
		opts.SuccessCodes = DefaultSuccessCodes
	}

	start := time.Now()
	timer := time.NewTimer(opts.Interval)
	defer timer.Stop()

	last := Pending
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}

		obs, err := check(ctx)
		if err != nil {
			return zero, err
		}

		state := classify(obs, opts.SuccessCodes)
		last = state
		if opts.OnAttempt != nil {
			opts.OnAttempt(Attempt{Number: attempt, State: state, Code: obs.Code, Found: obs.Found, Elapsed: time.Since(start)})
		}

		if state == Completed {
			return obs.Snapshot, nil
		}
		if !obs.Found && !opts.RetryNotFound {
			return zero, ErrTaskNotFound
		}
		timer.Reset(opts.Interval)
	}

	return zero, &TimeoutError{Attempts: opts.MaxAttempts, Elapsed: time.Since(start), Last: last}
}

func classify[T any](obs Observation[T], success []int) State {
	if !obs.Found {
		return Processing
	}
	for _, c := range success {
		if obs.Code == c {
			return Completed
		}
	}
	return Processing
}
