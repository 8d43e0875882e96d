package resguard

import (
	"errors"
	"fmt"

	"github.com/hupe1980/resguard/registry"
	"github.com/hupe1980/resguard/resource"
)

var (
	// ErrNotFound is returned when unregistering an unknown or
	// already-removed resource id.
	ErrNotFound = errors.New("resource not found")

	// ErrShuttingDown is returned for mutating calls after Shutdown began.
	ErrShuttingDown = errors.New("resource manager is shutting down")

	// ErrCleanupInProgress is returned when ForceCleanup is invoked while
	// another ForceCleanup sweep is still running.
	ErrCleanupInProgress = errors.New("cleanup already in progress")
)

// ErrLimitExceeded indicates a per-kind count quota was hit at
// registration time. It is retryable: the caller may try again once
// other resources of the same kind have been released.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrLimitExceeded struct {
	Kind  resource.Kind
	Limit int
	cause error
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("%s limit reached: %d", e.Kind, e.Limit)
}

func (e *ErrLimitExceeded) Unwrap() error { return e.cause }

// ErrMemoryLimitExceeded indicates the registration would push tracked
// memory past the configured limit.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMemoryLimitExceeded struct {
	Limit     int64
	InUse     int64
	Requested int64
	cause     error
}

func (e *ErrMemoryLimitExceeded) Error() string {
	return fmt.Sprintf("memory limit exceeded: limit %d, in use %d, requested %d",
		e.Limit, e.InUse, e.Requested)
}

func (e *ErrMemoryLimitExceeded) Unwrap() error { return e.cause }

// ErrShutdownCleanup aggregates the cleanups that failed or timed out
// during Shutdown. The registry is empty regardless; this error exists
// so the host can log what may have leaked.
type ErrShutdownCleanup struct {
	Failed       int
	Descriptions []string
}

func (e *ErrShutdownCleanup) Error() string {
	return fmt.Sprintf("shutdown completed with %d failed cleanup(s)", e.Failed)
}

// translateError maps registry-layer errors to the public contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, registry.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrShuttingDown, err)
	}

	var le *registry.ErrLimitExceeded
	if errors.As(err, &le) {
		return &ErrLimitExceeded{Kind: le.Kind, Limit: le.Limit, cause: err}
	}
	var me *registry.ErrMemoryLimitExceeded
	if errors.As(err, &me) {
		return &ErrMemoryLimitExceeded{Limit: me.Limit, InUse: me.InUse, Requested: me.Requested, cause: err}
	}

	return err
}
