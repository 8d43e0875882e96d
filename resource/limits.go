package resource

import "time"

// Limits holds resource quotas and cleanup deadlines.
//
// A Limits value is an immutable snapshot: the manager swaps the whole
// snapshot on update and never applies it partially. Updating limits
// affects future admission checks only; resources already registered
// are never evicted retroactively.
type Limits struct {
	// MaxMemoryBytes is the hard limit for the summed SizeBytes of all
	// live entries. If 0, no memory limit is enforced (only tracking).
	MaxMemoryBytes int64 `koanf:"max_memory_bytes"`

	// MaxProcesses is the maximum number of live KindProcess entries.
	// If 0, unlimited.
	MaxProcesses int `koanf:"max_processes"`

	// MaxConnections is the maximum number of live KindConnection entries.
	// If 0, unlimited.
	MaxConnections int `koanf:"max_connections"`

	// MaxFileHandles is the maximum number of live KindFileHandle entries.
	// If 0, unlimited.
	MaxFileHandles int `koanf:"max_file_handles"`

	// MaxTasks is the maximum number of live KindTask entries.
	// If 0, unlimited.
	MaxTasks int `koanf:"max_tasks"`

	// CleanupTimeout bounds a single release callback invocation.
	// A callback still running when the deadline fires is abandoned and
	// counted as a failed cleanup. If 0, DefaultCleanupTimeout is used.
	CleanupTimeout time.Duration `koanf:"cleanup_timeout"`

	// StaleResourceTimeout is the age past which a non-critical entry
	// becomes eligible for automatic reaping. If 0, stale reaping is
	// disabled.
	StaleResourceTimeout time.Duration `koanf:"stale_resource_timeout"`
}

// Defaults mirroring a mid-sized interactive host (a handful of
// subprocesses, tens of connections and tasks).
const (
	DefaultMaxMemoryBytes   = 512 << 20 // 512 MiB
	DefaultMaxProcesses     = 16
	DefaultMaxConnections   = 64
	DefaultMaxFileHandles   = 128
	DefaultMaxTasks         = 64
	DefaultCleanupTimeout   = 5 * time.Second
	DefaultStaleTimeout     = 10 * time.Minute
	DefaultMonitorInterval  = 30 * time.Second
)

// DefaultLimits returns the default limit snapshot.
func DefaultLimits() Limits {
	return Limits{
		MaxMemoryBytes:       DefaultMaxMemoryBytes,
		MaxProcesses:         DefaultMaxProcesses,
		MaxConnections:       DefaultMaxConnections,
		MaxFileHandles:       DefaultMaxFileHandles,
		MaxTasks:             DefaultMaxTasks,
		CleanupTimeout:       DefaultCleanupTimeout,
		StaleResourceTimeout: DefaultStaleTimeout,
	}
}

// MaxCount returns the live-count quota for a kind, or 0 if the kind
// has no count quota (Channel, Stream, Timer and Memory entries are
// bounded by MaxMemoryBytes only).
func (l Limits) MaxCount(k Kind) int {
	switch k {
	case KindProcess:
		return l.MaxProcesses
	case KindConnection:
		return l.MaxConnections
	case KindFileHandle:
		return l.MaxFileHandles
	case KindTask:
		return l.MaxTasks
	default:
		return 0
	}
}
