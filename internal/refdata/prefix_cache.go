package refdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jhonbetancourt/abacox-telephony-pricing-sub002/internal/database/models"
)

// DefaultPrefixTTL is how long a country's prefix list is served before it
// is reloaded.
const DefaultPrefixTTL = 30 * time.Minute

// PrefixLoader loads the prefixes of one origin country.
type PrefixLoader interface {
	LoadPrefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error)
}

// prefixSnapshot is immutable once published.
type prefixSnapshot struct {
	prefixes []models.PrefixInfo
	loadedAt time.Time
}

type prefixEntry struct {
	snap atomic.Pointer[prefixSnapshot]
}

// CacheStats are cumulative prefix cache counters.
type CacheStats struct {
	Hits           uint64
	Reloads        uint64
	ReloadFailures uint64
}

// PrefixCache serves per-country prefix lists with a time-to-live. Readers
// take the published snapshot without locking; on expiry a single reload per
// country runs while concurrent readers of that country wait for it. A failed
// reload keeps serving the stale snapshot when there is one.
type PrefixCache struct {
	loader PrefixLoader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[int64]*prefixEntry
	group   singleflight.Group

	hits           atomic.Uint64
	reloads        atomic.Uint64
	reloadFailures atomic.Uint64
}

// NewPrefixCache creates a cache in front of loader. A non-positive ttl uses
// DefaultPrefixTTL.
func NewPrefixCache(loader PrefixLoader, ttl time.Duration, logger *slog.Logger) *PrefixCache {
	if ttl <= 0 {
		ttl = DefaultPrefixTTL
	}
	return &PrefixCache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With("subsystem", "prefix-cache"),
		entries: make(map[int64]*prefixEntry),
	}
}

func (c *PrefixCache) entry(countryID int64) *prefixEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[countryID]
	if !ok {
		e = &prefixEntry{}
		c.entries[countryID] = e
	}
	return e
}

func (c *PrefixCache) fresh(s *prefixSnapshot) bool {
	return s != nil && c.now().Sub(s.loadedAt) < c.ttl
}

// Prefixes returns the prefixes of a country ordered by access-code length
// descending. The returned slice must not be modified.
func (c *PrefixCache) Prefixes(ctx context.Context, countryID int64) ([]models.PrefixInfo, error) {
	e := c.entry(countryID)
	if s := e.snap.Load(); c.fresh(s) {
		c.hits.Add(1)
		return s.prefixes, nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(countryID, 10), func() (any, error) {
		// Another caller may have reloaded while we waited to get here.
		if s := e.snap.Load(); c.fresh(s) {
			return s, nil
		}

		// The reload is shared by every waiter.
		loaded, err := c.loader.LoadPrefixes(context.WithoutCancel(ctx), countryID)
		if err != nil {
			c.reloadFailures.Add(1)
			return nil, err
		}
		s := &prefixSnapshot{prefixes: SortPrefixes(loaded), loadedAt: c.now()}
		e.snap.Store(s)
		c.reloads.Add(1)
		c.logger.Debug("prefixes reloaded", "country_id", countryID, "count", len(s.prefixes))
		return s, nil
	})
	if err != nil {
		if stale := e.snap.Load(); stale != nil {
			c.logger.Warn("prefix reload failed, serving stale list",
				"country_id", countryID,
				"age", c.now().Sub(stale.loadedAt).String(),
				"error", err,
			)
			return stale.prefixes, nil
		}
		return nil, fmt.Errorf("loading prefixes for country %d: %w", countryID, err)
	}
	return v.(*prefixSnapshot).prefixes, nil
}

// Invalidate drops the snapshot of one country so the next read reloads it.
func (c *PrefixCache) Invalidate(countryID int64) {
	c.entry(countryID).snap.Store(nil)
}

// Stats returns the cumulative counters.
func (c *PrefixCache) Stats() CacheStats {
	return CacheStats{
		Hits:           c.hits.Load(),
		Reloads:        c.reloads.Load(),
		ReloadFailures: c.reloadFailures.Load(),
	}
}

// SortPrefixes returns a copy of prefixes ordered by access-code length
// descending, then telephony type and id.
func SortPrefixes(prefixes []models.PrefixInfo) []models.PrefixInfo {
	out := make([]models.PrefixInfo, len(prefixes))
	copy(out, prefixes)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Code) != len(out[j].Code) {
			return len(out[i].Code) > len(out[j].Code)
		}
		if out[i].TelephonyTypeID != out[j].TelephonyTypeID {
			return out[i].TelephonyTypeID < out[j].TelephonyTypeID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LoadPrefixes lets a snapshot act as the loader behind a PrefixCache.
func (t *Tables) LoadPrefixes(_ context.Context, countryID int64) ([]models.PrefixInfo, error) {
	return t.prefixes[countryID], nil
}
