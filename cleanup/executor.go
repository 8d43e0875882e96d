// Package cleanup runs release callbacks under a hard deadline and
// normalizes their outcome.
package cleanup

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/resguard/resource"
)

// Outcome classifies a single release invocation.
type Outcome int

const (
	// Success means the callback returned nil, or there was no callback.
	Success Outcome = iota
	// Failed means the callback returned an application error.
	Failed
	// TimedOut means the callback was still running when the deadline
	// fired. The callback goroutine is abandoned, not killed: the
	// underlying OS resource may still exist briefly afterwards.
	TimedOut
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the normalized outcome of one release invocation.
type Result struct {
	Outcome  Outcome
	Err      error // nil unless Outcome == Failed
	Duration time.Duration
}

// OK reports whether the cleanup completed successfully.
func (r Result) OK() bool { return r.Outcome == Success }

// Executor races release callbacks against a deadline.
//
// The executor never holds any registry lock while a callback runs; a
// hanging callback blocks nobody but its own abandoned goroutine.
type Executor struct {
	clock clock.Clock
}

// NewExecutor creates an executor. If c is nil, the real clock is used.
func NewExecutor(c clock.Clock) *Executor {
	if c == nil {
		c = clock.New()
	}
	return &Executor{clock: c}
}

// Run invokes release and waits at most timeout for it to return.
//
// The callback runs in its own goroutine with a context derived from
// ctx that is additionally canceled when the deadline fires, giving
// well-behaved callbacks a chance to abort early. Cancellation of ctx
// does not cut the wait short: bookkeeping needs a definite outcome,
// and the wait is already bounded by timeout. A nil release is
// trivially Success. If timeout <= 0, resource.DefaultCleanupTimeout
// applies.
func (e *Executor) Run(ctx context.Context, release resource.ReleaseFunc, timeout time.Duration) Result {
	if release == nil {
		return Result{Outcome: Success}
	}
	if timeout <= 0 {
		timeout = resource.DefaultCleanupTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := e.clock.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- release(ctx)
	}()

	timer := e.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		elapsed := e.clock.Since(start)
		if err != nil {
			return Result{Outcome: Failed, Err: err, Duration: elapsed}
		}
		return Result{Outcome: Success, Duration: elapsed}

	case <-timer.C:
		cancel()
		return Result{Outcome: TimedOut, Duration: e.clock.Since(start)}
	}
}
