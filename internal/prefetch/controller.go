package prefetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crm/internal/domain"
)

// Config holds the look-ahead window settings.
type Config struct {
	InitialBatch     int
	TopUpBatch       int
	LowWaterMark     int
	PriorityCount    int
	AvgTimePerDriver time.Duration
}

// DefaultConfig returns the standard window settings.
func DefaultConfig() Config {
	return Config{
		InitialBatch:     20,
		TopUpBatch:       10,
		LowWaterMark:     5,
		PriorityCount:    3,
		AvgTimePerDriver: 2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialBatch <= 0 {
		c.InitialBatch = d.InitialBatch
	}
	if c.TopUpBatch <= 0 {
		c.TopUpBatch = d.TopUpBatch
	}
	if c.LowWaterMark < 0 {
		c.LowWaterMark = d.LowWaterMark
	}
	if c.PriorityCount <= 0 {
		c.PriorityCount = d.PriorityCount
	}
	if c.AvgTimePerDriver <= 0 {
		c.AvgTimePerDriver = d.AvgTimePerDriver
	}
	return c
}

// Controller keeps one workspace's drivers cached ahead of navigation.
//
// A single worker goroutine runs batch prefetches, so at most one batch is in
// flight at any time. Adjacent prefetches run on their own goroutines.
type Controller struct {
	workspace string
	loader    *Loader
	api       DriverAPI
	cfg       Config
	log       zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	batches chan int
	wg      sync.WaitGroup

	mu         sync.Mutex
	prefetched map[string]struct{}
	window     []string // prefetched ids not yet consumed, in list order
	offset     int
	hasMore    bool
	started    bool
	stopped    bool
}

// NewController creates a controller for workspace. Call Start to begin.
func NewController(workspace string, loader *Loader, api DriverAPI, cfg Config, log zerolog.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		workspace:  workspace,
		loader:     loader,
		api:        api,
		cfg:        cfg.withDefaults(),
		log:        log.With().Str("workspace", workspace).Logger(),
		ctx:        ctx,
		cancel:     cancel,
		batches:    make(chan int, 1),
		prefetched: make(map[string]struct{}),
		hasMore:    true,
	}
}

// Start launches the worker and queues the initial batch.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run()
	c.requestBatch(c.cfg.InitialBatch)
}

// Stop cancels in-flight work and waits for the controller's goroutines.
// Results arriving after Stop are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AvgTimePerDriver / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case size := <-c.batches:
			c.runBatch(size)
		case <-ticker.C:
			if !c.HasMore() {
				c.log.Debug().Msg("driver list exhausted, top-up stopped")
				return
			}
			if c.needsTopUp() {
				c.runBatch(c.cfg.TopUpBatch)
			}
		}
	}
}

// requestBatch queues a batch without blocking. A batch already queued
// absorbs the request.
func (c *Controller) requestBatch(size int) {
	select {
	case c.batches <- size:
	default:
	}
}

func (c *Controller) needsTopUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore && len(c.window) <= c.cfg.LowWaterMark
}

func (c *Controller) runBatch(size int) {
	c.mu.Lock()
	if !c.hasMore {
		c.mu.Unlock()
		return
	}
	offset := c.offset
	c.mu.Unlock()

	page, err := c.api.ListDrivers(c.ctx, c.workspace, size, offset)
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Warn().Err(err).Int("offset", offset).Msg("prefetch: list drivers failed")
		}
		return
	}
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	c.offset += len(page)
	if len(page) < size {
		c.hasMore = false
	}
	ids := make([]string, 0, len(page))
	for _, record := range page {
		id := record.DriverOriginID
		if id == "" {
			continue
		}
		if _, seen := c.prefetched[id]; seen {
			continue
		}
		ids = append(ids, id)
	}
	c.mu.Unlock()

	c.fetchBatch(ids)
}

// fetchBatch loads the first PriorityCount ids concurrently and the rest
// one at a time.
func (c *Controller) fetchBatch(ids []string) {
	priority := ids
	var rest []string
	if len(ids) > c.cfg.PriorityCount {
		priority, rest = ids[:c.cfg.PriorityCount], ids[c.cfg.PriorityCount:]
	}

	var g errgroup.Group
	for _, id := range priority {
		g.Go(func() error {
			c.fetchOne(id, true)
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range rest {
		if c.ctx.Err() != nil {
			return
		}
		c.fetchOne(id, true)
	}
}

func (c *Controller) fetchOne(id string, inWindow bool) {
	if _, err := c.loader.Load(c.ctx, c.workspace, id); err != nil {
		if c.ctx.Err() == nil {
			c.log.Warn().Err(err).Str("driver_id", id).Msg("prefetch: load driver failed")
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	if _, seen := c.prefetched[id]; seen {
		return
	}
	c.prefetched[id] = struct{}{}
	if inWindow {
		c.window = append(c.window, id)
	}
}

// PrefetchAdjacent loads the record's next and previous drivers in the
// background unless they are cached or already prefetched.
func (c *Controller) PrefetchAdjacent(record *domain.DriverRecord) {
	if record == nil {
		return
	}
	for _, ref := range []domain.DriverRef{record.Next, record.Previous} {
		if ref.IsZero() {
			continue
		}
		id := ref.String()
		if c.IsPrefetched(id) || c.loader.IsCached(c.workspace, id) {
			continue
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.wg.Add(1)
		c.mu.Unlock()

		go func() {
			defer c.wg.Done()
			c.fetchOne(id, false)
		}()
	}
}

// Consume drops id from the window and the prefetched set once the operator
// has navigated to it.
func (c *Controller) Consume(id string) {
	c.mu.Lock()
	delete(c.prefetched, id)
	for i, windowID := range c.window {
		if windowID == id {
			c.window = append(c.window[:i], c.window[i+1:]...)
			break
		}
	}
	low := c.started && c.hasMore && len(c.window) <= c.cfg.LowWaterMark
	c.mu.Unlock()

	if low && c.ctx.Err() == nil {
		c.requestBatch(c.cfg.TopUpBatch)
	}
}

// IsPrefetched reports whether id is in the prefetched set.
func (c *Controller) IsPrefetched(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.prefetched[id]
	return ok
}

// HasMore reports whether further list pages may exist.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Stats describes the current window.
type Stats struct {
	Prefetched int  `json:"prefetched"`
	Unconsumed int  `json:"unconsumed"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// Stats returns a snapshot of the window bookkeeping.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Prefetched: len(c.prefetched),
		Unconsumed: len(c.window),
		Offset:     c.offset,
		HasMore:    c.hasMore,
	}
}
