package registry

import (
	"errors"
	"fmt"

	"github.com/hupe1980/resguard/resource"
)

// ErrNotFound is returned when an id is absent from the registry,
// including the second removal of an id that was already removed.
//
// This is a registry-layer sentinel; the resguard package translates
// it into its public error contract.
var ErrNotFound = errors.New("resource not found")

// ErrClosed is returned for registrations after shutdown has begun.
var ErrClosed = errors.New("registry closed")

// ErrLimitExceeded indicates a per-kind count quota was hit at admission.
type ErrLimitExceeded struct {
	Kind  resource.Kind
	Limit int
}

func (e *ErrLimitExceeded) Error() string {
	return fmt.Sprintf("%s limit reached: %d", e.Kind, e.Limit)
}

// ErrMemoryLimitExceeded indicates the candidate registration would push
// tracked memory past the configured limit.
type ErrMemoryLimitExceeded struct {
	Limit     int64
	InUse     int64
	Requested int64
}

func (e *ErrMemoryLimitExceeded) Error() string {
	return fmt.Sprintf("memory limit exceeded: limit %d, in use %d, requested %d",
		e.Limit, e.InUse, e.Requested)
}
