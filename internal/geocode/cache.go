package geocode

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
	"github.com/locationup/locationup-go/pkg/logger"
	"github.com/locationup/locationup-go/pkg/metrics"
	"github.com/locationup/locationup-go/pkg/redis"
)

// Lookup is the upstream resolver the cache falls back to on a miss.
type Lookup interface {
	Lookup(ctx context.Context, city string) (Coordinates, error)
}

// Storage persists the cache as one JSON blob under a fixed key.
type Storage interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, blob string) error
}

// RedisStorage keeps the blob in the durable client-side store.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage builds storage under the fixed geocode cache key.
func NewRedisStorage(client *redis.Client) (*RedisStorage, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redis client required")
	}
	return &RedisStorage{client: client, key: client.CacheKey("geocode")}, nil
}

func (s *RedisStorage) Load(ctx context.Context) (string, error) {
	blob, err := s.client.Get(ctx, s.key)
	if err == redis.Nil {
		return "", nil
	}
	return blob, err
}

func (s *RedisStorage) Save(ctx context.Context, blob string) error {
	return s.client.Set(ctx, s.key, blob, 0)
}

// Cache memoizes city-name lookups under normalized keys. Lookups never
// return errors: any failure degrades to "no result". Entries accumulate
// additively; there is no eviction.
type Cache struct {
	lookup    Lookup
	storage   Storage
	logg      *logger.Logger
	metricset *metrics.GeocodeMetrics
	group     singleflight.Group

	mu      sync.Mutex
	entries map[string]Coordinates
}

// CacheOption configures optional cache behavior.
type CacheOption func(*Cache)

// WithCacheLogger attaches a structured logger.
func WithCacheLogger(logg *logger.Logger) CacheOption {
	return func(c *Cache) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithCacheMetrics attaches geocode metrics collectors.
func WithCacheMetrics(m *metrics.GeocodeMetrics) CacheOption {
	return func(c *Cache) {
		if m != nil {
			c.metricset = m
		}
	}
}

// NewCache builds the cache and loads the persisted blob once. A corrupt or
// missing blob yields an empty cache, never a startup failure.
func NewCache(ctx context.Context, lookup Lookup, storage Storage, opts ...CacheOption) (*Cache, error) {
	if lookup == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "geocode lookup required")
	}
	if storage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "geocode storage required")
	}

	cache := &Cache{
		lookup:  lookup,
		storage: storage,
		logg:    logger.New(logger.Options{ServiceName: "geocode", Output: io.Discard}),
		entries: make(map[string]Coordinates),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}

	blob, err := storage.Load(ctx)
	if err != nil {
		cache.logg.Warn(ctx, "geocode cache load failed, starting empty")
		return cache, nil
	}
	if blob != "" {
		var entries map[string]Coordinates
		if err := json.Unmarshal([]byte(blob), &entries); err != nil {
			cache.logg.Warn(ctx, "geocode cache blob corrupt, starting empty")
		} else {
			cache.entries = entries
		}
	}
	if cache.entries == nil {
		cache.entries = make(map[string]Coordinates)
	}
	return cache, nil
}

// Geocode resolves a city name. The second return value is false when there
// is no result; errors are never surfaced.
func (c *Cache) Geocode(ctx context.Context, cityName string) (Coordinates, bool) {
	key := NormalizeKey(cityName)
	if key == "" {
		return Coordinates{}, false
	}

	c.mu.Lock()
	coords, hit := c.entries[key]
	c.mu.Unlock()
	if hit {
		c.metricset.IncHit()
		return coords, true
	}

	c.metricset.IncMiss()
	result, err, _ := c.group.Do(key, func() (any, error) {
		// re-check: a concurrent caller may have filled the entry
		c.mu.Lock()
		coords, hit := c.entries[key]
		c.mu.Unlock()
		if hit {
			return coords, nil
		}

		coords, lookupErr := c.lookup.Lookup(ctx, cityName)
		if lookupErr != nil {
			return Coordinates{}, lookupErr
		}
		c.store(ctx, key, coords)
		return coords, nil
	})
	if err != nil {
		c.metricset.IncFailure()
		c.logg.Warn(c.logg.WithField(ctx, "city", key), "geocode lookup failed: "+err.Error())
		return Coordinates{}, false
	}
	return result.(Coordinates), true
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// store applies the in-memory write and immediately mirrors the full map to
// durable storage. A failed save is only a future miss, not corruption.
func (c *Cache) store(ctx context.Context, key string, coords Coordinates) {
	c.mu.Lock()
	c.entries[key] = coords
	blob, err := json.Marshal(c.entries)
	c.mu.Unlock()

	if err != nil {
		c.logg.Error(ctx, "marshal geocode cache", err)
		return
	}
	if err := c.storage.Save(ctx, string(blob)); err != nil {
		c.logg.Error(ctx, "persist geocode cache", err)
	}
}
