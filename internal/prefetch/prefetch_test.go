package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm/internal/cache"
	"crm/internal/domain"
	"crm/internal/tests"
)

func roster(n int) []domain.DriverRecord {
	records := make([]domain.DriverRecord, n)
	for i := range records {
		records[i] = domain.DriverRecord{
			DriverOriginID: fmt.Sprintf("d%02d", i),
			FirstName:      "Driver",
			LastName:       fmt.Sprintf("%02d", i),
		}
	}
	return records
}

func quietConfig() Config {
	return Config{
		InitialBatch:     20,
		TopUpBatch:       10,
		LowWaterMark:     5,
		PriorityCount:    3,
		AvgTimePerDriver: time.Hour,
	}
}

func newFixture(t *testing.T, n int) (*tests.MockDriverAPI, *cache.DriverCache, *Loader) {
	t.Helper()
	api := tests.NewMockDriverAPI()
	api.SetRoster("ws", roster(n)...)
	c := cache.New()
	return api, c, NewLoader(c, api, zerolog.Nop())
}

func TestLoader_CacheHitSkipsNetwork(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 3)
	c.Set("ws", "d01", domain.DriverRecord{DriverOriginID: "d01"})

	rec, err := loader.Load(context.Background(), "ws", "d01")
	require.NoError(t, err)
	assert.Equal(t, "d01", rec.DriverOriginID)
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.GetDriverCallCount))
}

func TestLoader_MissFetchesAndCaches(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 3)

	rec, err := loader.Load(context.Background(), "ws", "d01")
	require.NoError(t, err)
	assert.Equal(t, domain.DriverRef("d02"), rec.Next)
	assert.True(t, c.Contains("ws", "d01"))

	_, err = loader.Load(context.Background(), "ws", "d01")
	require.NoError(t, err)
	assert.Equal(t, 1, api.CallsFor("d01"))
}

func TestLoader_CurrentDriverCachedUnderBothKeys(t *testing.T) {
	t.Parallel()

	_, c, loader := newFixture(t, 2)

	rec, err := loader.Load(context.Background(), "ws", "")
	require.NoError(t, err)
	assert.Equal(t, "d00", rec.DriverOriginID)
	assert.True(t, c.Contains("ws", ""))
	assert.True(t, c.Contains("ws", "d00"))
}

func TestLoader_ConcurrentMissesShareOneRequest(t *testing.T) {
	t.Parallel()

	api, _, loader := newFixture(t, 3)
	api.Hold()

	var wg sync.WaitGroup
	results := make([]*domain.DriverRecord, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := loader.Load(context.Background(), "ws", "d02")
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}

	require.Eventually(t, func() bool { return api.CallsFor("d02") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	api.Release()
	wg.Wait()

	assert.Equal(t, 1, api.CallsFor("d02"))
	for _, rec := range results {
		require.NotNil(t, rec)
		assert.Equal(t, "d02", rec.DriverOriginID)
	}
}

func TestLoader_SharedFetchReturnsIndependentCopies(t *testing.T) {
	t.Parallel()

	api := tests.NewMockDriverAPI()
	api.SetRoster("ws", domain.DriverRecord{
		DriverOriginID:    "d00",
		Phones:            []string{"+2250700000000"},
		RecentWeeklyStats: map[string]int{"2025-W10": 7},
	})
	c := cache.New()
	loader := NewLoader(c, api, zerolog.Nop())
	api.Hold()

	var wg sync.WaitGroup
	results := make([]*domain.DriverRecord, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := loader.Load(context.Background(), "ws", "")
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}
	require.Eventually(t, func() bool { return api.CallsFor("") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	api.Release()
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	results[0].Phones[0] = "changed"
	results[0].RecentWeeklyStats["2025-W10"] = 0

	assert.Equal(t, "+2250700000000", results[1].Phones[0])
	assert.Equal(t, 7, results[1].RecentWeeklyStats["2025-W10"])
	for _, id := range []string{"", "d00"} {
		cached, ok := c.Get("ws", id)
		require.True(t, ok)
		assert.Equal(t, "+2250700000000", cached.Phones[0])
		assert.Equal(t, 7, cached.RecentWeeklyStats["2025-W10"])
	}

	// Entries cached under the default and real id do not alias each other.
	viaDefault, _ := c.Get("ws", "")
	viaDefault.Phones[0] = "changed"
	viaID, _ := c.Get("ws", "d00")
	assert.Equal(t, "+2250700000000", viaID.Phones[0])
}

func TestLoader_CancelledCallerDoesNotWriteCache(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 3)
	api.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx, "ws", "d01")
		done <- err
	}()

	require.Eventually(t, func() bool { return api.CallsFor("d01") == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	api.Release()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Contains("ws", "d01"))
}

func TestController_InitialBatchFillsWindow(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 50)
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	require.Eventually(t, func() bool { return ctrl.Stats().Prefetched == 20 }, 2*time.Second, 5*time.Millisecond)

	stats := ctrl.Stats()
	assert.Equal(t, 20, stats.Unconsumed)
	assert.Equal(t, 20, stats.Offset)
	assert.True(t, stats.HasMore)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.ListDriversCallCount))
	for i := 0; i < 20; i++ {
		assert.True(t, c.Contains("ws", fmt.Sprintf("d%02d", i)))
	}
	assert.False(t, c.Contains("ws", "d20"))
}

func TestController_PrefetchAdjacentIsIdempotent(t *testing.T) {
	t.Parallel()

	api, _, loader := newFixture(t, 5)
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	t.Cleanup(ctrl.Stop)

	current := domain.DriverRecord{DriverOriginID: "d02", Next: "d03", Previous: "d01"}
	ctrl.PrefetchAdjacent(&current)
	require.Eventually(t, func() bool {
		return ctrl.IsPrefetched("d03") && ctrl.IsPrefetched("d01")
	}, time.Second, 5*time.Millisecond)

	before := atomic.LoadInt32(&api.GetDriverCallCount)
	ctrl.PrefetchAdjacent(&current)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(&api.GetDriverCallCount))
}

func TestController_PrefetchAdjacentSkipsCachedAndMissing(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 5)
	c.Set("ws", "d03", domain.DriverRecord{DriverOriginID: "d03"})
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	t.Cleanup(ctrl.Stop)

	ctrl.PrefetchAdjacent(&domain.DriverRecord{DriverOriginID: "d04", Previous: "d03"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&api.GetDriverCallCount))
}

func TestController_FailedFetchIsNotMarkedPrefetched(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 5)
	api.FailDriver("d03", errors.New("upstream down"))
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	t.Cleanup(ctrl.Stop)

	ctrl.PrefetchAdjacent(&domain.DriverRecord{DriverOriginID: "d02", Next: "d03", Previous: "d01"})
	require.Eventually(t, func() bool { return ctrl.IsPrefetched("d01") }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return api.CallsFor("d03") == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ctrl.IsPrefetched("d03"))
	assert.False(t, c.Contains("ws", "d03"))
}

func TestController_ShortPageStopsPaging(t *testing.T) {
	t.Parallel()

	api, _, loader := newFixture(t, 12)
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	require.Eventually(t, func() bool { return ctrl.Stats().Prefetched == 12 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, ctrl.HasMore())

	for i := 0; i < 12; i++ {
		ctrl.Consume(fmt.Sprintf("d%02d", i))
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.ListDriversCallCount))
}

func TestController_TopUpAtLowWaterMark(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 50)
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	require.Eventually(t, func() bool { return ctrl.Stats().Prefetched == 20 }, 2*time.Second, 5*time.Millisecond)

	// Consuming down to six unconsumed stays above the mark.
	for i := 0; i < 14; i++ {
		ctrl.Consume(fmt.Sprintf("d%02d", i))
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.ListDriversCallCount))

	ctrl.Consume("d14")
	require.Eventually(t, func() bool { return ctrl.Stats().Offset == 30 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return ctrl.Stats().Unconsumed == 15 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.Contains("ws", "d29"))
}

func TestController_TickerTopsUp(t *testing.T) {
	t.Parallel()

	api, _, loader := newFixture(t, 40)
	cfg := quietConfig()
	cfg.InitialBatch = 4
	cfg.TopUpBatch = 4
	cfg.AvgTimePerDriver = 20 * time.Millisecond
	ctrl := NewController("ws", loader, api, cfg, zerolog.Nop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	// Four unconsumed ids sit below the mark, so a tick tops up once.
	require.Eventually(t, func() bool { return ctrl.Stats().Prefetched == 8 }, 2*time.Second, 5*time.Millisecond)

	// Eight unconsumed ids are above the mark; further ticks add nothing.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 8, ctrl.Stats().Prefetched)
	assert.Equal(t, 8, ctrl.Stats().Unconsumed)

	for i := 0; i < 3; i++ {
		ctrl.Consume(fmt.Sprintf("d%02d", i))
	}
	// Five unconsumed ids reach the mark and pull one more batch.
	require.Eventually(t, func() bool { return ctrl.Stats().Unconsumed == 9 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	stats := ctrl.Stats()
	assert.Equal(t, 12, stats.Offset)
	assert.Equal(t, 9, stats.Prefetched)
	assert.Equal(t, 9, stats.Unconsumed)
}

func TestController_StopDropsLateResults(t *testing.T) {
	t.Parallel()

	api, c, loader := newFixture(t, 30)
	api.Hold()
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	ctrl.Start()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&api.GetDriverCallCount) >= 3
	}, time.Second, 5*time.Millisecond)

	ctrl.Stop()
	api.Release()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, ctrl.Stats().Prefetched)

	ctrl.PrefetchAdjacent(&domain.DriverRecord{DriverOriginID: "d01", Next: "d02"})
	assert.Equal(t, int32(3), atomic.LoadInt32(&api.GetDriverCallCount), "stopped controller issues no requests")
}

func TestController_PriorityBatchIsConcurrent(t *testing.T) {
	t.Parallel()

	api, _, loader := newFixture(t, 30)
	api.Hold()
	ctrl := NewController("ws", loader, api, quietConfig(), zerolog.Nop())
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	// The three priority ids are requested together; the remainder waits.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&api.GetDriverCallCount) == 3
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&api.GetDriverCallCount))
	assert.Equal(t, 1, api.CallsFor("d00"))
	assert.Equal(t, 1, api.CallsFor("d01"))
	assert.Equal(t, 1, api.CallsFor("d02"))

	api.Release()
	require.Eventually(t, func() bool { return ctrl.Stats().Prefetched == 20 }, 2*time.Second, 5*time.Millisecond)
}
