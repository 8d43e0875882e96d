// Package testutil provides release-callback test doubles shared by
// the resguard package tests.
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/resguard/resource"
)

// CountingRelease returns a release callback that succeeds and the
// counter it increments on every invocation. Useful for asserting
// at-most-once invocation.
func CountingRelease() (resource.ReleaseFunc, *atomic.Int64) {
	var calls atomic.Int64
	return func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, &calls
}

// FailingRelease returns a release callback that always returns err.
func FailingRelease(err error) resource.ReleaseFunc {
	return func(ctx context.Context) error {
		return err
	}
}

// BlockingRelease returns a release callback that blocks for d of wall
// time (or until its context is canceled) before succeeding. Use a
// duration comfortably above the cleanup timeout to force a timeout
// outcome.
func BlockingRelease(d time.Duration) resource.ReleaseFunc {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HangingRelease returns a release callback that never returns until
// its context is canceled, plus a counter of started invocations.
func HangingRelease() (resource.ReleaseFunc, *atomic.Int64) {
	var started atomic.Int64
	return func(ctx context.Context) error {
		started.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}, &started
}
