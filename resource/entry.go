package resource

import (
	"context"
	"time"
)

// ID uniquely identifies a registered resource.
//
// IDs have the form "{prefix}_{sequence}", e.g. "proc_42".
type ID string

// ReleaseFunc releases the underlying resource (kill the subprocess,
// close the connection, cancel the task). It is invoked at most once,
// outside any manager lock, and must be self-contained: it may block,
// but a slow callback is abandoned once the cleanup timeout fires.
type ReleaseFunc func(ctx context.Context) error

// Entry describes one tracked resource.
//
// An Entry is exclusively owned by the registry from insertion until
// removal; ownership of Release transfers to the cleanup executor for
// the duration of a single invocation.
type Entry struct {
	ID           ID
	Kind         Kind
	Description  string
	SizeBytes    int64
	Critical     bool
	RegisteredAt time.Time
	Release      ReleaseFunc
}

// Age returns the entry age at the given instant.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.RegisteredAt)
}
