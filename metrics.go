package resguard

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/resguard/resource"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRegister is called after each registration attempt.
	// duration is the time taken, err is nil if the resource was admitted.
	RecordRegister(duration time.Duration, err error)

	// RecordUnregister is called after each unregister attempt.
	// err is nil unless the id was unknown.
	RecordUnregister(duration time.Duration, err error)

	// RecordCleanup is called after each release callback invocation.
	// timedOut reports whether the callback exceeded the cleanup timeout;
	// err is the application error the callback returned, if any.
	RecordCleanup(duration time.Duration, timedOut bool, err error)

	// RecordReap is called after each monitor tick that evicted stale
	// resources. count is the number of resources reaped.
	RecordReap(count int)

	// RecordForceCleanup is called after each ForceCleanup sweep.
	RecordForceCleanup(cleaned int, duration time.Duration)

	// RecordStats is called when the monitor republishes registry stats.
	RecordStats(stats resource.Stats)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRegister(time.Duration, error)      {}
func (NoopMetricsCollector) RecordUnregister(time.Duration, error)    {}
func (NoopMetricsCollector) RecordCleanup(time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordReap(int)                           {}
func (NoopMetricsCollector) RecordForceCleanup(int, time.Duration)    {}
func (NoopMetricsCollector) RecordStats(resource.Stats)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RegisterCount     atomic.Int64
	RegisterErrors    atomic.Int64
	UnregisterCount   atomic.Int64
	UnregisterErrors  atomic.Int64
	CleanupCount      atomic.Int64
	CleanupFailures   atomic.Int64
	CleanupTimeouts   atomic.Int64
	CleanupTotalNanos atomic.Int64
	ReapedResources   atomic.Int64
	ForceCleanups     atomic.Int64
	ForceCleaned      atomic.Int64
	LastActive        atomic.Int64
	LastMemoryUsage   atomic.Int64
}

// RecordRegister implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegister(duration time.Duration, err error) {
	b.RegisterCount.Add(1)
	if err != nil {
		b.RegisterErrors.Add(1)
	}
}

// RecordUnregister implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnregister(duration time.Duration, err error) {
	b.UnregisterCount.Add(1)
	if err != nil {
		b.UnregisterErrors.Add(1)
	}
}

// RecordCleanup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCleanup(duration time.Duration, timedOut bool, err error) {
	b.CleanupCount.Add(1)
	b.CleanupTotalNanos.Add(duration.Nanoseconds())
	if timedOut {
		b.CleanupTimeouts.Add(1)
	} else if err != nil {
		b.CleanupFailures.Add(1)
	}
}

// RecordReap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReap(count int) {
	b.ReapedResources.Add(int64(count))
}

// RecordForceCleanup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordForceCleanup(cleaned int, duration time.Duration) {
	b.ForceCleanups.Add(1)
	b.ForceCleaned.Add(int64(cleaned))
}

// RecordStats implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStats(stats resource.Stats) {
	b.LastActive.Store(stats.ActiveResources)
	b.LastMemoryUsage.Store(stats.MemoryUsage)
}
