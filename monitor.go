package resguard

import "context"

// StartMonitoring spawns the background stale-resource monitor.
//
// It is idempotent: calling it twice never creates two loops. The
// monitor stops when Shutdown runs; Shutdown does not return while the
// loop is still alive.
func (m *Manager) StartMonitoring() {
	if m.shutdownStarted.Load() {
		return
	}
	if !m.monitorStarted.CompareAndSwap(false, true) {
		return
	}

	m.monitorWg.Add(1)
	go m.monitorLoop()
	m.logger.Debug("stale-resource monitor started", "interval", m.monitorInterval)
}

// monitorLoop evicts stale resources and republishes stats each tick.
// The stop signal is observed within one tick.
func (m *Manager) monitorLoop() {
	defer m.monitorWg.Done()

	ticker := m.clock.Ticker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.monitorStop:
			return

		case <-ticker.C:
			m.reapStale(context.Background())
		}
	}
}

// reapStale unregisters every non-critical entry older than the
// configured staleness threshold, then republishes stats.
//
// The stale scan holds the registry lock; the release callbacks run
// afterwards through the shared unregister path. When a reap rate is
// configured, entries past the budget stay for the next tick.
func (m *Manager) reapStale(ctx context.Context) {
	ids := m.registry.Stale()

	reaped := 0
	for _, id := range ids {
		if m.reapLimiter != nil && !m.reapLimiter.Allow() {
			break
		}
		// The entry may have been unregistered between scan and reap.
		if err := m.unregister(ctx, id); err != nil {
			continue
		}
		reaped++
		m.logger.WithResource(id).Info("stale resource reaped")
	}

	if reaped > 0 {
		m.metrics.RecordReap(reaped)
	}

	stats := m.registry.Stats()
	m.metrics.RecordStats(stats)
	m.logger.Debug("monitor tick",
		"reaped", reaped,
		"active", stats.ActiveResources,
		"memory_usage", stats.MemoryUsage,
	)
}

// stopMonitor signals the monitor loop and waits for it to exit.
// Safe to call without StartMonitoring having run: the stop channel is
// closed unconditionally, so a loop racing with shutdown observes the
// signal on its first select and exits.
func (m *Manager) stopMonitor() {
	m.monitorStopOnce.Do(func() {
		close(m.monitorStop)
	})
	m.monitorWg.Wait()
}
