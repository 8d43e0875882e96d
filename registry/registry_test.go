package registry

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resguard/resource"
)

func testLimits() resource.Limits {
	return resource.Limits{
		MaxMemoryBytes:       1000,
		MaxProcesses:         2,
		MaxConnections:       4,
		MaxFileHandles:       4,
		MaxTasks:             4,
		CleanupTimeout:       time.Second,
		StaleResourceTimeout: time.Minute,
	}
}

func TestRegistry_AddAssignsPrefixedIDs(t *testing.T) {
	r := New(testLimits(), nil)

	e1, err := r.Add(resource.KindProcess, "tts engine", 0, false, nil)
	require.NoError(t, err)
	e2, err := r.Add(resource.KindConnection, "llm stream", 0, false, nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(e1.ID), "proc_"))
	assert.True(t, strings.HasPrefix(string(e2.ID), "conn_"))
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_InvalidKind(t *testing.T) {
	r := New(testLimits(), nil)
	_, err := r.Add(resource.Kind(99), "bogus", 0, false, nil)
	require.Error(t, err)
}

func TestRegistry_ProcessLimit(t *testing.T) {
	r := New(testLimits(), nil)

	_, err := r.Add(resource.KindProcess, "p1", 0, false, nil)
	require.NoError(t, err)
	_, err = r.Add(resource.KindProcess, "p2", 0, false, nil)
	require.NoError(t, err)

	_, err = r.Add(resource.KindProcess, "p3", 0, false, nil)
	var le *ErrLimitExceeded
	require.ErrorAs(t, err, &le)
	assert.Equal(t, resource.KindProcess, le.Kind)
	assert.Equal(t, 2, le.Limit)

	// The rejected registration must not change active counts.
	assert.Equal(t, int64(2), r.Stats().ActiveResources)

	// Other kinds are unaffected by the process quota.
	_, err = r.Add(resource.KindTask, "worker", 0, false, nil)
	require.NoError(t, err)
}

func TestRegistry_MemoryLimitCrossesExactlyOnThreshold(t *testing.T) {
	r := New(testLimits(), nil) // MaxMemoryBytes: 1000

	_, err := r.Add(resource.KindMemory, "buf1", 400, false, nil)
	require.NoError(t, err)
	_, err = r.Add(resource.KindMemory, "buf2", 600, false, nil)
	require.NoError(t, err, "sum == limit must still be admitted")

	_, err = r.Add(resource.KindMemory, "buf3", 1, false, nil)
	var me *ErrMemoryLimitExceeded
	require.ErrorAs(t, err, &me)
	assert.Equal(t, int64(1000), me.Limit)
	assert.Equal(t, int64(1000), me.InUse)
	assert.Equal(t, int64(1), me.Requested)

	assert.Equal(t, int64(1000), r.Stats().MemoryUsage)
}

func TestRegistry_MemoryCountsAllKinds(t *testing.T) {
	r := New(testLimits(), nil)

	// A non-Memory entry with a declared size still counts.
	_, err := r.Add(resource.KindStream, "decoded audio", 900, false, nil)
	require.NoError(t, err)

	_, err = r.Add(resource.KindMemory, "buf", 200, false, nil)
	var me *ErrMemoryLimitExceeded
	require.ErrorAs(t, err, &me)
}

func TestRegistry_RemoveReleasesQuota(t *testing.T) {
	r := New(testLimits(), nil)

	e, err := r.Add(resource.KindMemory, "buf", 800, false, nil)
	require.NoError(t, err)

	removed, err := r.Remove(e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, removed.ID)
	assert.Equal(t, int64(0), r.Stats().MemoryUsage)

	// Quota freed up again.
	_, err = r.Add(resource.KindMemory, "buf2", 800, false, nil)
	require.NoError(t, err)
}

func TestRegistry_DoubleRemove(t *testing.T) {
	r := New(testLimits(), nil)

	e, err := r.Add(resource.KindTask, "job", 0, false, nil)
	require.NoError(t, err)

	_, err = r.Remove(e.ID)
	require.NoError(t, err)

	_, err = r.Remove(e.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.Remove("task_999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Close(t *testing.T) {
	r := New(testLimits(), nil)
	require.False(t, r.Closed())

	r.Close()
	r.Close() // idempotent
	require.True(t, r.Closed())

	_, err := r.Add(resource.KindTask, "late", 0, false, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRegistry_StatsBookkeeping(t *testing.T) {
	r := New(testLimits(), nil)

	e1, _ := r.Add(resource.KindProcess, "p", 0, false, nil)
	e2, _ := r.Add(resource.KindTask, "t", 100, false, nil)

	stats := r.Stats()
	assert.Equal(t, int64(2), stats.TotalResources)
	assert.Equal(t, int64(2), stats.ActiveResources)
	assert.Equal(t, int64(1), stats.ByKind[resource.KindProcess])
	assert.Equal(t, int64(1), stats.ByKind[resource.KindTask])
	assert.Equal(t, int64(100), stats.MemoryUsage)

	_, err := r.Remove(e1.ID)
	require.NoError(t, err)
	r.RecordOutcome(true)

	_, err = r.Remove(e2.ID)
	require.NoError(t, err)
	r.RecordOutcome(false)

	stats = r.Stats()
	assert.Equal(t, int64(2), stats.TotalResources, "total never decreases")
	assert.Equal(t, int64(0), stats.ActiveResources)
	assert.Equal(t, int64(1), stats.CleanedResources)
	assert.Equal(t, int64(1), stats.FailedCleanups)
	assert.Empty(t, stats.ByKind)
	assert.Equal(t, stats.TotalResources, stats.ActiveResources+stats.CleanedResources+stats.FailedCleanups)
}

func TestRegistry_UpdateLimitsDoesNotEvict(t *testing.T) {
	r := New(testLimits(), nil)

	_, err := r.Add(resource.KindProcess, "p1", 0, false, nil)
	require.NoError(t, err)
	_, err = r.Add(resource.KindProcess, "p2", 0, false, nil)
	require.NoError(t, err)

	limits := testLimits()
	limits.MaxProcesses = 1
	r.UpdateLimits(limits)

	// Existing entries stay over the tightened limit.
	assert.Equal(t, int64(2), r.Stats().ActiveResources)

	// But new admissions observe it.
	_, err = r.Add(resource.KindProcess, "p3", 0, false, nil)
	var le *ErrLimitExceeded
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Limit)
}

func TestRegistry_StaleScan(t *testing.T) {
	mock := clock.NewMock()
	r := New(testLimits(), mock) // StaleResourceTimeout: 1m

	old, err := r.Add(resource.KindTask, "old", 0, false, nil)
	require.NoError(t, err)
	_, err = r.Add(resource.KindProcess, "old but critical", 0, true, nil)
	require.NoError(t, err)

	mock.Add(2 * time.Minute)

	fresh, err := r.Add(resource.KindTask, "fresh", 0, false, nil)
	require.NoError(t, err)

	stale := r.Stale()
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0])
	assert.NotContains(t, stale, fresh.ID)
}

func TestRegistry_StaleDisabled(t *testing.T) {
	mock := clock.NewMock()
	limits := testLimits()
	limits.StaleResourceTimeout = 0
	r := New(limits, mock)

	_, err := r.Add(resource.KindTask, "job", 0, false, nil)
	require.NoError(t, err)
	mock.Add(24 * time.Hour)

	assert.Nil(t, r.Stale())
}

func TestRegistry_List(t *testing.T) {
	r := New(testLimits(), nil)

	normal, _ := r.Add(resource.KindTask, "normal", 0, false, nil)
	critical, _ := r.Add(resource.KindProcess, "critical", 0, true, nil)

	nonCritical := r.List(false)
	require.Len(t, nonCritical, 1)
	assert.Equal(t, normal.ID, nonCritical[0])

	all := r.List(true)
	assert.Len(t, all, 2)
	assert.Contains(t, all, critical.ID)
}

// TestRegistry_ConcurrentAdmissionNoOvershoot is the check-then-act
// race: with a quota of K and N>K concurrent registrations, exactly K
// must win and the rest must fail, with no overshoot of the counters.
func TestRegistry_ConcurrentAdmissionNoOvershoot(t *testing.T) {
	const (
		quota   = 5
		workers = 50
	)

	limits := testLimits()
	limits.MaxProcesses = quota
	r := New(limits, nil)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Add(resource.KindProcess, "contender", 0, false, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, limited int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			var le *ErrLimitExceeded
			require.True(t, errors.As(err, &le))
			limited++
		}
	}

	assert.Equal(t, quota, ok)
	assert.Equal(t, workers-quota, limited)
	assert.Equal(t, int64(quota), r.Stats().ActiveResources)
}

func TestRegistry_ConcurrentMemoryAdmission(t *testing.T) {
	limits := testLimits()
	limits.MaxMemoryBytes = 500
	r := New(limits, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Add(resource.KindMemory, "chunk", 100, false, nil)
		}()
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, int64(500), stats.MemoryUsage)
	assert.Equal(t, int64(5), stats.ActiveResources)
}
