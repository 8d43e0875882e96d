// Package registry holds the authoritative map of live resources and
// enforces quota admission.
//
// Quota enforcement is an inherently racy check-then-act sequence, so
// the admission check and the map mutation happen inside one exclusive
// critical section: two concurrent registrations can never both observe
// "one slot free" and both insert.
package registry

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/hupe1980/resguard/resource"
)

// Registry tracks live resource entries and their aggregate counters.
//
// All methods are safe for concurrent use. Release callbacks are never
// invoked by the registry; callers remove the entry first and run its
// callback outside the lock.
type Registry struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[resource.ID]*resource.Entry
	limits  resource.Limits
	closed  bool

	seq     uint64
	byKind  []int64 // indexed by resource.Kind
	total   int64
	cleaned int64
	failed  int64
	memory  int64
}

// New creates a registry with the given limit snapshot.
// If c is nil, the real clock is used.
func New(limits resource.Limits, c clock.Clock) *Registry {
	if c == nil {
		c = clock.New()
	}
	return &Registry{
		clock:   c,
		entries: make(map[resource.ID]*resource.Entry),
		limits:  limits,
		byKind:  make([]int64, len(resource.Kinds())),
	}
}

// Add admits and inserts a new entry, returning it with an allocated id.
//
// Admission order: shutdown check, memory quota, per-kind count quota.
// On success the total, active, per-kind and memory counters are bumped
// atomically with the insert.
func (r *Registry) Add(kind resource.Kind, description string, sizeBytes int64, critical bool, release resource.ReleaseFunc) (*resource.Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid resource kind %d", int(kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if limit := r.limits.MaxMemoryBytes; limit > 0 && sizeBytes > 0 {
		if r.memory+sizeBytes > limit {
			return nil, &ErrMemoryLimitExceeded{
				Limit:     limit,
				InUse:     r.memory,
				Requested: sizeBytes,
			}
		}
	}

	if limit := r.limits.MaxCount(kind); limit > 0 {
		if r.byKind[kind] >= int64(limit) {
			return nil, &ErrLimitExceeded{Kind: kind, Limit: limit}
		}
	}

	r.seq++
	entry := &resource.Entry{
		ID:           resource.ID(fmt.Sprintf("%s_%d", kind.Prefix(), r.seq)),
		Kind:         kind,
		Description:  description,
		SizeBytes:    sizeBytes,
		Critical:     critical,
		RegisteredAt: r.clock.Now(),
		Release:      release,
	}

	r.entries[entry.ID] = entry
	r.total++
	r.byKind[kind]++
	r.memory += sizeBytes

	return entry, nil
}

// Remove deletes the entry from the map and decrements the active,
// per-kind and memory counters, returning the removed entry so the
// caller can run its release callback outside the lock.
//
// Removing an unknown or already-removed id returns ErrNotFound; an id
// can therefore never be double-removed, even while a slow cleanup for
// it is still in flight.
func (r *Registry) Remove(id resource.ID) (*resource.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(r.entries, id)
	r.byKind[entry.Kind]--
	r.memory -= entry.SizeBytes

	return entry, nil
}

// RecordOutcome finalizes the bookkeeping for a removed entry:
// cleaned on success, failed on a cleanup error or timeout.
func (r *Registry) RecordOutcome(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if success {
		r.cleaned++
	} else {
		r.failed++
	}
}

// UpdateLimits swaps the limit snapshot used by future admission
// checks. Entries already over a tightened limit are not evicted.
func (r *Registry) UpdateLimits(limits resource.Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = limits
}

// Limits returns the current limit snapshot.
func (r *Registry) Limits() resource.Limits {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limits
}

// Close rejects all subsequent Add calls with ErrClosed. Registrations
// already blocked on the lock observe the flag once they acquire it.
// Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Stale returns the ids of non-critical entries whose age exceeds the
// configured StaleResourceTimeout, or nil if stale reaping is disabled.
// The scan holds the lock, so it never observes a partially-mutated map.
func (r *Registry) Stale() []resource.ID {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	timeout := r.limits.StaleResourceTimeout
	if timeout <= 0 {
		return nil
	}

	var ids []resource.ID
	for id, entry := range r.entries {
		if entry.Critical {
			continue
		}
		if entry.Age(now) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// List returns the ids of live entries. If criticalToo is false,
// critical entries are excluded (the ForceCleanup sweep); with true it
// lists everything (the shutdown drain).
func (r *Registry) List(criticalToo bool) []resource.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]resource.ID, 0, len(r.entries))
	for id, entry := range r.entries {
		if !criticalToo && entry.Critical {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats returns a consistent snapshot of the aggregate counters.
func (r *Registry) Stats() resource.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind := make(map[resource.Kind]int64, len(r.byKind))
	for _, k := range resource.Kinds() {
		if n := r.byKind[k]; n > 0 {
			byKind[k] = n
		}
	}

	return resource.Stats{
		TotalResources:   r.total,
		ActiveResources:  int64(len(r.entries)),
		CleanedResources: r.cleaned,
		FailedCleanups:   r.failed,
		ByKind:           byKind,
		MemoryUsage:      r.memory,
	}
}
