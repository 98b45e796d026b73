package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crm/internal/domain"
)

const (
	// DefaultCapacity bounds the number of cached driver profiles.
	DefaultCapacity = 100

	// DefaultTTL is how long a cached profile stays fresh.
	DefaultTTL = 5 * time.Minute

	// defaultKeyID stands in for an absent driver id (the workspace's current driver).
	defaultKeyID = "default"

	snapshotTimeout = 2 * time.Second
)

// SnapshotStore persists the serialized cache between restarts.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// Key builds the cache key for a workspace and optional driver id.
func Key(workspace, driverID string) string {
	if driverID == "" {
		driverID = defaultKeyID
	}
	return workspace + ":" + driverID
}

type entry struct {
	key      string
	record   domain.DriverRecord
	storedAt time.Time
}

// snapshotEntry is the persisted form of one entry.
type snapshotEntry struct {
	Data      domain.DriverRecord `json:"data"`
	Timestamp int64               `json:"timestamp"`
}

// DriverCache is a least-recently-used driver profile cache with a
// time-to-live on every entry. Mutations are mirrored to a SnapshotStore on
// a best-effort basis; its operations never fail.
type DriverCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	items    map[string]*list.Element

	snapshots SnapshotStore
	seq       uint64 // bumped under mu for every snapshot write
	saveMu    sync.Mutex
	savedSeq  uint64 // last seq written to snapshots, guarded by saveMu
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a DriverCache.
type Option func(*DriverCache)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(c *DriverCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets the entry time-to-live. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *DriverCache) {
		c.ttl = ttl
	}
}

// WithSnapshotStore enables durable snapshots.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(c *DriverCache) {
		c.snapshots = s
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *DriverCache) {
		c.now = now
	}
}

// WithLogger sets the logger used for snapshot failures.
func WithLogger(log zerolog.Logger) Option {
	return func(c *DriverCache) {
		c.log = log
	}
}

// New creates a cache and restores any persisted snapshot.
func New(opts ...Option) *DriverCache {
	c := &DriverCache{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.restore()
	return c
}

// Get returns the cached record for (workspace, driverID). Expired entries
// are evicted and reported absent.
func (c *DriverCache) Get(workspace, driverID string) (*domain.DriverRecord, bool) {
	key := Key(workspace, driverID)

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}

	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeElement(el)
		data, seq := c.marshalLocked()
		c.mu.Unlock()
		c.persist(data, seq)
		return nil, false
	}

	c.order.MoveToFront(el)
	record := e.record.Clone()
	c.mu.Unlock()
	return &record, true
}

// Contains reports whether a fresh entry exists, without touching recency.
func (c *DriverCache) Contains(workspace, driverID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[Key(workspace, driverID)]
	return ok && !c.expired(el.Value.(*entry))
}

// Set stores record under (workspace, driverID) and stamps it with the
// current time. Inserting a new key into a full cache first evicts the
// least recently used entry.
func (c *DriverCache) Set(workspace, driverID string, record domain.DriverRecord) {
	key := Key(workspace, driverID)

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.record = record.Clone()
		e.storedAt = c.now()
		c.order.MoveToFront(el)
	} else {
		if c.order.Len() >= c.capacity {
			if oldest := c.order.Back(); oldest != nil {
				c.removeElement(oldest)
			}
		}
		c.items[key] = c.order.PushFront(&entry{key: key, record: record.Clone(), storedAt: c.now()})
	}
	data, seq := c.marshalLocked()
	c.mu.Unlock()

	c.persist(data, seq)
}

// Clear drops every entry and the persisted snapshot.
func (c *DriverCache) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if c.snapshots == nil {
		return
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if seq <= c.savedSeq {
		return
	}
	c.savedSeq = seq

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := c.snapshots.Delete(ctx); err != nil {
		c.log.Warn().Err(err).Msg("driver cache: delete snapshot failed")
	}
}

// Len returns the number of entries, expired ones included until they are read.
func (c *DriverCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the keys of fresh entries, most recently used first.
// Expired entries met on the way are evicted.
func (c *DriverCache) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, c.order.Len())
	evicted := false
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if c.expired(e) {
			c.removeElement(el)
			evicted = true
		} else {
			keys = append(keys, e.key)
		}
		el = next
	}
	var (
		data []byte
		seq  uint64
	)
	if evicted {
		data, seq = c.marshalLocked()
	}
	c.mu.Unlock()

	if evicted {
		c.persist(data, seq)
	}
	return keys
}

func (c *DriverCache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl
}

func (c *DriverCache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// marshalLocked serializes the cache and stamps the result with the next
// write sequence. Callers hold c.mu.
func (c *DriverCache) marshalLocked() ([]byte, uint64) {
	if c.snapshots == nil {
		return nil, 0
	}

	snapshot := make(map[string]snapshotEntry, len(c.items))
	for key, el := range c.items {
		e := el.Value.(*entry)
		snapshot[key] = snapshotEntry{Data: e.record, Timestamp: e.storedAt.UnixMilli()}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.log.Warn().Err(err).Msg("driver cache: encode snapshot failed")
		return nil, 0
	}
	c.seq++
	return data, c.seq
}

// persist saves data unless a newer snapshot has already been written.
func (c *DriverCache) persist(data []byte, seq uint64) {
	if c.snapshots == nil || data == nil {
		return
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if seq <= c.savedSeq {
		return
	}
	c.savedSeq = seq

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := c.snapshots.Save(ctx, data); err != nil {
		c.log.Warn().Err(err).Msg("driver cache: save snapshot failed")
	}
}

// restore loads the persisted snapshot. Unreadable or corrupt snapshots
// leave the cache empty.
func (c *DriverCache) restore() {
	if c.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	data, err := c.snapshots.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("driver cache: load snapshot failed, starting empty")
		return
	}
	if len(data) == 0 {
		return
	}

	var snapshot map[string]snapshotEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.log.Warn().Err(err).Msg("driver cache: corrupt snapshot discarded")
		return
	}

	type restored struct {
		key string
		e   snapshotEntry
	}
	entries := make([]restored, 0, len(snapshot))
	for key, e := range snapshot {
		entries = append(entries, restored{key: key, e: e})
	}
	// Oldest first so the freshest entries end up most recently used.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].e.Timestamp == entries[j].e.Timestamp {
			return entries[i].key < entries[j].key
		}
		return entries[i].e.Timestamp < entries[j].e.Timestamp
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range entries {
		e := &entry{key: r.key, record: r.e.Data, storedAt: time.UnixMilli(r.e.Timestamp)}
		if c.expired(e) {
			continue
		}
		if c.order.Len() >= c.capacity {
			c.removeElement(c.order.Back())
		}
		c.items[r.key] = c.order.PushFront(e)
	}
	c.log.Debug().Int("entries", c.order.Len()).Msg("driver cache restored")
}
