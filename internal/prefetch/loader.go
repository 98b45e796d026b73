package prefetch

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"crm/internal/cache"
	"crm/internal/domain"
)

// DriverAPI is the subset of the remote driver API the prefetch layer uses.
type DriverAPI interface {
	GetDriver(ctx context.Context, workspace, driverID string) (*domain.DriverRecord, error)
	ListDrivers(ctx context.Context, workspace string, limit, offset int) ([]domain.DriverRecord, error)
}

// Cache is the subset of the driver cache the prefetch layer uses.
type Cache interface {
	Get(workspace, driverID string) (*domain.DriverRecord, bool)
	Set(workspace, driverID string, record domain.DriverRecord)
	Contains(workspace, driverID string) bool
}

// Loader is the single read path for driver profiles. Concurrent misses for
// the same key share one remote request.
type Loader struct {
	cache    Cache
	api      DriverAPI
	inflight singleflight.Group
	log      zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(c Cache, api DriverAPI, log zerolog.Logger) *Loader {
	return &Loader{cache: c, api: api, log: log}
}

// Cached returns the cached record without fetching.
func (l *Loader) Cached(workspace, driverID string) (*domain.DriverRecord, bool) {
	return l.cache.Get(workspace, driverID)
}

// IsCached reports whether the profile is cached, without touching recency.
func (l *Loader) IsCached(workspace, driverID string) bool {
	return l.cache.Contains(workspace, driverID)
}

// Load returns the profile from the cache, or fetches and caches it.
//
// The shared fetch is detached from any single caller so that one caller
// giving up does not fail the others; it is still bounded by the API
// client's timeout. The result is written to the cache only while ctx is
// live, so results that arrive after a workspace switch are dropped.
func (l *Loader) Load(ctx context.Context, workspace, driverID string) (*domain.DriverRecord, error) {
	if record, ok := l.cache.Get(workspace, driverID); ok {
		return record, nil
	}

	key := cache.Key(workspace, driverID)
	ch := l.inflight.DoChan(key, func() (any, error) {
		return l.api.GetDriver(context.WithoutCancel(ctx), workspace, driverID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Callers sharing the fetch each get their own copy.
		record := res.Val.(*domain.DriverRecord).Clone()
		l.cache.Set(workspace, driverID, record)
		if driverID == "" && record.DriverOriginID != "" {
			l.cache.Set(workspace, record.DriverOriginID, record)
		}
		if res.Shared {
			l.log.Debug().Str("key", key).Msg("joined in-flight driver fetch")
		}
		return &record, nil
	}
}
