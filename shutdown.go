package resguard

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// drainConcurrency bounds how many release callbacks the shutdown
// drain runs at once.
const drainConcurrency = 8

// Shutdown stops intake, stops the monitor and drains every remaining
// resource, critical and non-critical alike.
//
// Individual cleanup failures never abort the drain; the registry is
// guaranteed empty afterwards regardless of cleanup outcomes. Shutdown
// returns *ErrShutdownCleanup if and only if at least one cleanup
// failed or timed out. A second call is a no-op returning nil.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.shutdownStarted.CompareAndSwap(false, true) {
		return nil
	}

	// Stop intake first so registrations racing with shutdown fail
	// with ErrShuttingDown instead of leaking past the drain.
	m.registry.Close()
	m.stopMonitor()

	ids := m.registry.List(true)
	m.logger.Info("shutting down resource manager", "remaining", len(ids))

	var mu sync.Mutex
	var failures []string

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(drainConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			entry, err := m.registry.Remove(id)
			if err != nil {
				// Unregistered concurrently; nothing left to drain.
				return nil
			}
			result := m.release(ctx, entry)
			if !result.OK() {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s (%s): %s", entry.ID, entry.Kind, entry.Description))
				mu.Unlock()
			}
			return nil
		})
	}

	// Drain tasks collect failures instead of returning them.
	_ = g.Wait()

	if len(failures) > 0 {
		m.logger.Warn("shutdown completed with failed cleanups", "failed", len(failures))
		return &ErrShutdownCleanup{Failed: len(failures), Descriptions: failures}
	}

	m.logger.Info("resource manager shut down cleanly")
	return nil
}

// ForceCleanup unregisters every non-critical resource and returns the
// count actually cleaned. Critical resources are left untouched.
//
// Only one sweep may run at a time: a concurrent call fails with
// ErrCleanupInProgress. The guard flag is released on every exit path.
// After Shutdown has begun, ForceCleanup fails with ErrShuttingDown.
func (m *Manager) ForceCleanup(ctx context.Context) (int, error) {
	if m.registry.Closed() {
		return 0, ErrShuttingDown
	}
	if !m.cleanupInProgress.CompareAndSwap(false, true) {
		return 0, ErrCleanupInProgress
	}
	defer m.cleanupInProgress.Store(false)

	start := m.clock.Now()

	cleaned := 0
	for _, id := range m.registry.List(false) {
		// Entries can vanish concurrently; only count real removals.
		if err := m.unregister(ctx, id); err != nil {
			continue
		}
		cleaned++
	}

	m.metrics.RecordForceCleanup(cleaned, m.clock.Since(start))
	m.logger.Info("force cleanup finished", "cleaned", cleaned)

	return cleaned, nil
}
