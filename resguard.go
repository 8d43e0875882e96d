// Package resguard provides an embedded resource lifecycle manager for
// long-running Go applications.
//
// Resguard tracks heterogeneous runtime resources (subprocesses,
// network connections, file handles, background tasks, streams, timers,
// memory allocations) owned by a host application, enforces quotas at
// registration time, and guarantees bounded, best-effort release —
// under failure, timeout and shutdown alike:
//
//   - Race-free quota admission under concurrent registration
//   - Timeout-bounded execution of caller-supplied release callbacks
//   - Automatic reaping of stale, non-critical resources
//   - Orderly shutdown that drains everything while tolerating
//     individual cleanup failures
//
// # Quick Start
//
//	ctx := context.Background()
//	mgr := resguard.New(
//	    resguard.WithLimits(resource.DefaultLimits()),
//	    resguard.WithLogger(resguard.NewTextLogger(slog.LevelInfo)),
//	)
//	mgr.StartMonitoring()
//	defer mgr.Shutdown(ctx)
//
//	id, err := mgr.Register(ctx, resource.KindProcess, "tts subprocess",
//	    resguard.WithRelease(func(ctx context.Context) error {
//	        return cmd.Process.Kill()
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Unregister(ctx, id)
//
// # Ownership Model
//
// The manager is a plain shared handle: inject one *Manager into every
// collaborator that acquires bounded resources. There is no hidden
// process-wide singleton.
//
// Release callbacks run outside all manager locks and are invoked at
// most once. A callback that hangs past the cleanup timeout is
// abandoned, not killed; the bookkeeping entry is removed either way
// (see resource.Stats.FailedCleanups).
package resguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/hupe1980/resguard/cleanup"
	"github.com/hupe1980/resguard/registry"
	"github.com/hupe1980/resguard/resource"
)

// Manager tracks registered resources, enforces quotas and coordinates
// cleanup. All methods are safe for concurrent use.
type Manager struct {
	registry *registry.Registry
	executor *cleanup.Executor
	clock    clock.Clock
	logger   *Logger
	metrics  MetricsCollector

	monitorInterval time.Duration
	reapLimiter     *rate.Limiter

	monitorStarted  atomic.Bool
	monitorStop     chan struct{}
	monitorStopOnce sync.Once
	monitorWg       sync.WaitGroup

	shutdownStarted   atomic.Bool
	cleanupInProgress atomic.Bool
}

// New creates a Manager.
//
// The stale-reaper monitor is not started automatically; call
// StartMonitoring once the host is ready to hand off background work.
func New(optFns ...Option) *Manager {
	opts := options{
		limits:          resource.DefaultLimits(),
		logger:          NoopLogger(),
		metrics:         NoopMetricsCollector{},
		clock:           clock.New(),
		monitorInterval: resource.DefaultMonitorInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		registry:        registry.New(opts.limits, opts.clock),
		executor:        cleanup.NewExecutor(opts.clock),
		clock:           opts.clock,
		logger:          opts.logger,
		metrics:         opts.metrics,
		monitorInterval: opts.monitorInterval,
		reapLimiter:     newReapLimiter(opts.reapRate),
		monitorStop:     make(chan struct{}),
	}
}

// Register admits a new resource under the current limits and returns
// its id.
//
// The admission check and the insert happen in one critical section, so
// concurrent registrations can never jointly overshoot a quota. After
// Shutdown has begun, Register fails with ErrShuttingDown.
func (m *Manager) Register(ctx context.Context, kind resource.Kind, description string, optFns ...RegisterOption) (resource.ID, error) {
	start := m.clock.Now()

	var opts registerOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	entry, err := m.registry.Add(kind, description, opts.sizeBytes, opts.critical, opts.release)
	if err != nil {
		err = translateError(err)
		m.metrics.RecordRegister(m.clock.Since(start), err)
		return "", err
	}

	m.metrics.RecordRegister(m.clock.Since(start), nil)
	m.logger.WithKind(kind).WithResource(entry.ID).Debug("resource registered",
		"description", description,
		"size_bytes", opts.sizeBytes,
		"critical", opts.critical,
	)

	return entry.ID, nil
}

// Unregister removes the resource and runs its release callback, if
// any, bounded by the configured cleanup timeout.
//
// The entry leaves the registry before the callback runs: the id can
// never be unregistered twice, and a hanging callback blocks no other
// registration or unregistration. Cleanup failures and timeouts are
// recorded in stats and logged, never returned; Unregister only fails
// with ErrNotFound.
func (m *Manager) Unregister(ctx context.Context, id resource.ID) error {
	start := m.clock.Now()
	err := m.unregister(ctx, id)
	m.metrics.RecordUnregister(m.clock.Since(start), err)
	return err
}

// unregister is the shared removal path used by Unregister, the stale
// reaper, ForceCleanup and the shutdown drain.
func (m *Manager) unregister(ctx context.Context, id resource.ID) error {
	entry, err := m.registry.Remove(id)
	if err != nil {
		return translateError(err)
	}

	m.release(ctx, entry)
	return nil
}

// release runs the entry's callback outside the registry lock and
// finalizes the cleaned/failed bookkeeping.
func (m *Manager) release(ctx context.Context, entry *resource.Entry) cleanup.Result {
	result := m.executor.Run(ctx, entry.Release, m.registry.Limits().CleanupTimeout)

	m.registry.RecordOutcome(result.OK())
	m.metrics.RecordCleanup(result.Duration, result.Outcome == cleanup.TimedOut, result.Err)

	logger := m.logger.WithKind(entry.Kind).WithResource(entry.ID)
	switch result.Outcome {
	case cleanup.Failed:
		logger.Warn("resource cleanup failed",
			"description", entry.Description,
			"error", result.Err,
		)
	case cleanup.TimedOut:
		logger.Warn("resource cleanup timed out",
			"description", entry.Description,
			"timeout", m.registry.Limits().CleanupTimeout,
		)
	default:
		logger.Debug("resource released", "duration", result.Duration)
	}

	return result
}

// Stats returns a consistent snapshot of the registry aggregates.
func (m *Manager) Stats() resource.Stats {
	return m.registry.Stats()
}

// UpdateLimits atomically replaces the limit snapshot used by future
// admission checks. Resources already over a tightened limit are not
// evicted.
func (m *Manager) UpdateLimits(limits resource.Limits) {
	m.registry.UpdateLimits(limits)
	m.logger.Info("resource limits updated",
		"max_memory_bytes", limits.MaxMemoryBytes,
		"max_processes", limits.MaxProcesses,
		"max_connections", limits.MaxConnections,
		"max_file_handles", limits.MaxFileHandles,
		"max_tasks", limits.MaxTasks,
		"cleanup_timeout", limits.CleanupTimeout,
		"stale_timeout", limits.StaleResourceTimeout,
	)
}

// Limits returns the current limit snapshot.
func (m *Manager) Limits() resource.Limits {
	return m.registry.Limits()
}
