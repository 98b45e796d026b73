package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memorySnapshots is an in-memory SnapshotStore.
type memorySnapshots struct {
	mu      sync.Mutex
	data    []byte
	loadErr error
	saves   int
}

func (m *memorySnapshots) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data, nil
}

func (m *memorySnapshots) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memorySnapshots) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// slowSnapshots delays every write by a random sub-millisecond amount, the
// way a remote store does.
type slowSnapshots struct {
	memorySnapshots
}

func (s *slowSnapshots) pause() {
	time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond)
}

func (s *slowSnapshots) Save(ctx context.Context, data []byte) error {
	s.pause()
	return s.memorySnapshots.Save(ctx, data)
}

func (s *slowSnapshots) Delete(ctx context.Context) error {
	s.pause()
	return s.memorySnapshots.Delete(ctx)
}

func record(id string) domain.DriverRecord {
	return domain.DriverRecord{DriverOriginID: id, FirstName: "F" + id, LastName: "L" + id}
}

func TestDriverCache_SetThenGet(t *testing.T) {
	t.Parallel()

	c := New()
	c.Set("ws", "d1", record("d1"))

	got, ok := c.Get("ws", "d1")
	require.True(t, ok)
	assert.Equal(t, "d1", got.DriverOriginID)

	_, ok = c.Get("other", "d1")
	assert.False(t, ok, "keys are scoped per workspace")
}

func TestDriverCache_EmptyIDUsesDefaultKey(t *testing.T) {
	t.Parallel()

	c := New()
	c.Set("ws", "", record("current"))

	assert.Equal(t, []string{"ws:default"}, c.Keys())
	got, ok := c.Get("ws", "")
	require.True(t, ok)
	assert.Equal(t, "current", got.DriverOriginID)
}

func TestDriverCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithTTL(5*time.Minute), WithClock(clock.Now))
	c.Set("ws", "d1", record("d1"))

	clock.Advance(5 * time.Minute)
	_, ok := c.Get("ws", "d1")
	assert.True(t, ok, "entry exactly at the TTL is still fresh")

	clock.Advance(time.Second)
	_, ok = c.Get("ws", "d1")
	assert.False(t, ok)
	assert.Empty(t, c.Keys())
	assert.Equal(t, 0, c.Len())
}

func TestDriverCache_KeysDropsExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(WithTTL(time.Minute), WithClock(clock.Now))
	c.Set("ws", "old", record("old"))
	clock.Advance(2 * time.Minute)
	c.Set("ws", "new", record("new"))

	assert.Equal(t, []string{"ws:new"}, c.Keys())
	assert.False(t, c.Contains("ws", "old"))
}

func TestDriverCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := New(WithCapacity(3))
	c.Set("ws", "a", record("a"))
	c.Set("ws", "b", record("b"))
	c.Set("ws", "c", record("c"))

	_, ok := c.Get("ws", "a")
	require.True(t, ok)

	c.Set("ws", "d", record("d"))

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Contains("ws", "b"), "b was the least recently used")
	assert.True(t, c.Contains("ws", "a"))
	assert.Equal(t, []string{"ws:d", "ws:a", "ws:c"}, c.Keys())
}

func TestDriverCache_ReplaceDoesNotEvict(t *testing.T) {
	t.Parallel()

	c := New(WithCapacity(2))
	c.Set("ws", "a", record("a"))
	c.Set("ws", "b", record("b"))

	updated := record("a")
	updated.Plaque = "1234AB01"
	c.Set("ws", "a", updated)

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("ws", "a")
	require.True(t, ok)
	assert.Equal(t, "1234AB01", got.Plaque)
	assert.True(t, c.Contains("ws", "b"))
}

func TestDriverCache_ClearRemovesSnapshot(t *testing.T) {
	t.Parallel()

	store := &memorySnapshots{}
	c := New(WithSnapshotStore(store))
	c.Set("ws", "a", record("a"))
	require.NotEmpty(t, store.data)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, store.data)
}

func TestDriverCache_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := &memorySnapshots{}

	first := New(WithSnapshotStore(store), WithClock(clock.Now))
	first.Set("ws", "a", record("a"))
	clock.Advance(time.Second)
	first.Set("ws", "b", record("b"))
	clock.Advance(time.Second)
	first.Set("ws", "", record("current"))

	restarted := New(WithSnapshotStore(store), WithClock(clock.Now))

	assert.Equal(t, first.Keys(), restarted.Keys())
	got, ok := restarted.Get("ws", "b")
	require.True(t, ok)
	assert.Equal(t, "Lb Fb", got.FullName())
}

func TestDriverCache_RestoreSkipsExpiredAndRespectsCapacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := &memorySnapshots{}

	first := New(WithSnapshotStore(store), WithClock(clock.Now), WithTTL(time.Minute))
	first.Set("ws", "stale", record("stale"))
	clock.Advance(2 * time.Minute)
	first.Set("ws", "a", record("a"))
	clock.Advance(time.Second)
	first.Set("ws", "b", record("b"))

	restarted := New(WithSnapshotStore(store), WithClock(clock.Now), WithTTL(time.Minute), WithCapacity(1))
	assert.Equal(t, []string{"ws:b"}, restarted.Keys())
}

func TestDriverCache_CorruptSnapshotStartsEmpty(t *testing.T) {
	t.Parallel()

	store := &memorySnapshots{data: []byte(`{"ws:a": not json`)}
	c := New(WithSnapshotStore(store))
	assert.Equal(t, 0, c.Len())

	c.Set("ws", "a", record("a"))
	assert.Equal(t, 1, c.Len(), "cache keeps working after discarding the snapshot")
}

func TestDriverCache_UnreadableSnapshotStartsEmpty(t *testing.T) {
	t.Parallel()

	store := &memorySnapshots{loadErr: errors.New("connection refused")}
	c := New(WithSnapshotStore(store))
	assert.Equal(t, 0, c.Len())
}

func TestDriverCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(WithCapacity(10))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := string(rune('a' + (n+j)%20))
				c.Set("ws", id, record(id))
				c.Get("ws", id)
				c.Keys()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 10)
}

func TestDriverCache_ConcurrentSetsKeepLatestSnapshot(t *testing.T) {
	t.Parallel()

	for round := 0; round < 20; round++ {
		store := &slowSnapshots{}
		c := New(WithSnapshotStore(store))

		var wg sync.WaitGroup
		for g := 0; g < 3; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					id := fmt.Sprintf("d%d-%d", g, i)
					c.Set("ws", id, record(id))
				}
			}(g)
		}
		wg.Wait()

		restarted := New(WithSnapshotStore(store))
		require.Len(t, c.Keys(), 15)
		assert.ElementsMatch(t, c.Keys(), restarted.Keys(), "round %d", round)
	}
}

func TestDriverCache_ClearRacingSetMatchesSnapshot(t *testing.T) {
	t.Parallel()

	for round := 0; round < 20; round++ {
		store := &slowSnapshots{}
		c := New(WithSnapshotStore(store))
		c.Set("ws", "seed", record("seed"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				id := fmt.Sprintf("d%d", i)
				c.Set("ws", id, record(id))
			}
		}()
		go func() {
			defer wg.Done()
			c.Clear()
		}()
		wg.Wait()

		restarted := New(WithSnapshotStore(store))
		assert.ElementsMatch(t, c.Keys(), restarted.Keys(), "round %d", round)
	}
}

func TestFileSnapshotStore_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "driver-cache.json")

	first := New(WithSnapshotStore(NewFileSnapshotStore(path)))
	first.Set("ws", "a", record("a"))

	_, err := os.Stat(path)
	require.NoError(t, err)

	restarted := New(WithSnapshotStore(NewFileSnapshotStore(path)))
	assert.True(t, restarted.Contains("ws", "a"))

	restarted.Clear()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSnapshotStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "absent.json"))
	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, store.Delete(context.Background()))
}
