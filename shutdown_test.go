package resguard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resguard"
	"github.com/hupe1980/resguard/resource"
	"github.com/hupe1980/resguard/testutil"
)

func TestManager_ShutdownDrainsEverything(t *testing.T) {
	ctx := context.Background()
	m := resguard.New(resguard.WithLimits(testLimits()))

	release, calls := testutil.CountingRelease()
	_, err := m.Register(ctx, resource.KindProcess, "normal", resguard.WithRelease(release))
	require.NoError(t, err)
	_, err = m.Register(ctx, resource.KindConnection, "critical conn",
		resguard.AsCritical(), resguard.WithRelease(release))
	require.NoError(t, err)
	_, err = m.Register(ctx, resource.KindTask, "no callback")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx))

	// Critical and non-critical alike are drained.
	assert.Equal(t, int64(2), calls.Load())

	stats := m.Stats()
	assert.Equal(t, int64(0), stats.ActiveResources)
	assert.Equal(t, int64(3), stats.CleanedResources)
	assert.Equal(t, int64(0), stats.FailedCleanups)
}

func TestManager_ShutdownAggregatesFailures(t *testing.T) {
	ctx := context.Background()
	limits := testLimits()
	limits.CleanupTimeout = 100 * time.Millisecond
	m := resguard.New(resguard.WithLimits(limits))

	_, err := m.Register(ctx, resource.KindProcess, "wont die",
		resguard.WithRelease(testutil.FailingRelease(errors.New("kill failed"))))
	require.NoError(t, err)
	_, err = m.Register(ctx, resource.KindConnection, "hung close",
		resguard.WithRelease(testutil.BlockingRelease(10*time.Second)))
	require.NoError(t, err)
	_, err = m.Register(ctx, resource.KindTask, "fine")
	require.NoError(t, err)

	err = m.Shutdown(ctx)
	var se *resguard.ErrShutdownCleanup
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Failed)
	assert.Len(t, se.Descriptions, 2)

	// The registry is empty even though cleanups failed.
	stats := m.Stats()
	assert.Equal(t, int64(0), stats.ActiveResources)
	assert.Equal(t, int64(2), stats.FailedCleanups)
	assert.Equal(t, int64(1), stats.CleanedResources)
}

func TestManager_RegisterAfterShutdown(t *testing.T) {
	ctx := context.Background()
	m := resguard.New(resguard.WithLimits(testLimits()))

	require.NoError(t, m.Shutdown(ctx))

	_, err := m.Register(ctx, resource.KindTask, "too late")
	require.ErrorIs(t, err, resguard.ErrShuttingDown)
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	ctx := context.Background()
	m := resguard.New(resguard.WithLimits(testLimits()))

	_, err := m.Register(ctx, resource.KindProcess, "failing",
		resguard.WithRelease(testutil.FailingRelease(errors.New("boom"))))
	require.NoError(t, err)

	require.Error(t, m.Shutdown(ctx))
	// The second call has nothing left to do.
	require.NoError(t, m.Shutdown(ctx))
}

func TestManager_ForceCleanupSkipsCritical(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	release, calls := testutil.CountingRelease()
	_, err := m.Register(ctx, resource.KindTask, "expendable 1", resguard.WithRelease(release))
	require.NoError(t, err)
	_, err = m.Register(ctx, resource.KindTask, "expendable 2", resguard.WithRelease(release))
	require.NoError(t, err)
	critical, err := m.Register(ctx, resource.KindProcess, "precious",
		resguard.AsCritical(), resguard.WithRelease(release))
	require.NoError(t, err)

	cleaned, err := m.ForceCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleaned)
	assert.Equal(t, int64(2), calls.Load())

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.ActiveResources)
	assert.Equal(t, int64(1), stats.ByKind[resource.KindProcess])

	// The critical resource is still live and unregisterable.
	require.NoError(t, m.Unregister(ctx, critical))
}

func TestManager_ForceCleanupConcurrentRejected(t *testing.T) {
	ctx := context.Background()
	limits := testLimits()
	limits.CleanupTimeout = 10 * time.Second
	m := newManager(t, resguard.WithLimits(limits))

	started := make(chan struct{})
	unblock := make(chan struct{})
	_, err := m.Register(ctx, resource.KindTask, "slow release",
		resguard.WithRelease(func(ctx context.Context) error {
			close(started)
			<-unblock
			return nil
		}),
	)
	require.NoError(t, err)

	firstDone := make(chan struct{})
	var firstCleaned int
	go func() {
		defer close(firstDone)
		firstCleaned, _ = m.ForceCleanup(ctx)
	}()

	<-started

	// While the first sweep is mid-cleanup, a second one is rejected and
	// must not double-count.
	cleaned, err := m.ForceCleanup(ctx)
	require.ErrorIs(t, err, resguard.ErrCleanupInProgress)
	assert.Equal(t, 0, cleaned)

	close(unblock)
	<-firstDone
	assert.Equal(t, 1, firstCleaned)

	// The guard flag was released; the next sweep runs again.
	cleaned, err = m.ForceCleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cleaned)
}

func TestManager_ForceCleanupAfterShutdown(t *testing.T) {
	ctx := context.Background()
	m := resguard.New(resguard.WithLimits(testLimits()))

	require.NoError(t, m.Shutdown(ctx))

	_, err := m.ForceCleanup(ctx)
	require.ErrorIs(t, err, resguard.ErrShuttingDown)
}
