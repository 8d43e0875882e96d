package resguard

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/hupe1980/resguard/resource"
)

type options struct {
	limits          resource.Limits
	logger          *Logger
	metrics         MetricsCollector
	clock           clock.Clock
	monitorInterval time.Duration
	reapRate        float64
}

// Option configures Manager construction.
type Option func(*options)

// WithLimits configures the initial limit snapshot.
// Defaults to resource.DefaultLimits().
func WithLimits(limits resource.Limits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithLogger configures structured logging. Pass nil to disable
// logging (the default).
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metrics = collector
	}
}

// WithClock injects a clock, primarily for tests (clock.NewMock()).
// Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c == nil {
			c = clock.New()
		}
		o.clock = c
	}
}

// WithMonitorInterval configures the stale-reaper tick interval.
// Defaults to resource.DefaultMonitorInterval.
func WithMonitorInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.monitorInterval = interval
		}
	}
}

// WithReapRate bounds automatic stale eviction to perSecond release
// callbacks per second, so a large stale backlog cannot stampede slow
// cleanups in a single tick. Leftover stale entries are picked up on
// subsequent ticks. If 0 (the default), reaping is unbounded.
func WithReapRate(perSecond float64) Option {
	return func(o *options) {
		o.reapRate = perSecond
	}
}

func newReapLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type registerOptions struct {
	sizeBytes int64
	critical  bool
	release   resource.ReleaseFunc
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOptions)

// WithSizeBytes declares the memory footprint of the resource.
// The size counts toward the MaxMemoryBytes quota while the resource
// is live, whatever its kind.
func WithSizeBytes(sizeBytes int64) RegisterOption {
	return func(o *registerOptions) {
		if sizeBytes > 0 {
			o.sizeBytes = sizeBytes
		}
	}
}

// AsCritical excludes the resource from stale reaping and ForceCleanup.
// Critical resources are still torn down at Shutdown.
func AsCritical() RegisterOption {
	return func(o *registerOptions) {
		o.critical = true
	}
}

// WithRelease supplies the one-shot release callback invoked when the
// resource is unregistered, reaped or drained at shutdown. Without a
// callback, unregistering is pure bookkeeping.
func WithRelease(release resource.ReleaseFunc) RegisterOption {
	return func(o *registerOptions) {
		o.release = release
	}
}
