package cache

import (
	"fmt"
	"time"

	"github.com/goliatone/go-query-cache/internal/cacheinfra"
)

// UseDefaultStaleTime asks the client to resolve the stale time from the
// per-resource table, falling back to Config.DefaultStaleTime.
const UseDefaultStaleTime time.Duration = -1

// ConfigError is returned when a configuration value is out of range.
type ConfigError = cacheinfra.ConfigError

// StorageConfig sizes the backing store.
type StorageConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// Config controls staleness, garbage collection and storage of the query cache.
type Config struct {
	// DefaultStaleTime applies to resources missing from StaleTimes.
	DefaultStaleTime time.Duration
	StaleTimes       map[string]time.Duration
	// GCGracePeriod is how long an entry without subscribers is kept.
	// A negative value disables collection.
	GCGracePeriod time.Duration
	Storage       StorageConfig
}

// DefaultConfig returns sensible defaults for the query cache.
func DefaultConfig() Config {
	infra := cacheinfra.DefaultConfig()
	return Config{
		DefaultStaleTime: 0,
		StaleTimes:       map[string]time.Duration{},
		GCGracePeriod:    5 * time.Minute,
		Storage: StorageConfig{
			Capacity:           infra.Capacity,
			NumShards:          infra.NumShards,
			TTL:                infra.TTL,
			EvictionPercentage: infra.EvictionPercentage,
			EvictionInterval:   infra.EvictionInterval,
		},
	}
}

// WithStaleTime returns a copy of c with the stale time for resource set.
func (c Config) WithStaleTime(resource string, d time.Duration) Config {
	times := make(map[string]time.Duration, len(c.StaleTimes)+1)
	for k, v := range c.StaleTimes {
		times[k] = v
	}
	times[resource] = d
	c.StaleTimes = times
	return c
}

// StaleTime resolves the stale time for resource.
func (c Config) StaleTime(resource string) time.Duration {
	if d, ok := c.StaleTimes[resource]; ok {
		return d
	}
	return c.DefaultStaleTime
}

// Validate ensures the configuration can build a client.
func (c Config) Validate() error {
	if c.DefaultStaleTime < 0 {
		return &ConfigError{Field: "DefaultStaleTime", Message: "must be non-negative"}
	}
	for resource, d := range c.StaleTimes {
		if d < 0 {
			return &ConfigError{Field: fmt.Sprintf("StaleTimes[%s]", resource), Message: "must be non-negative"}
		}
	}
	return c.storage().Validate()
}

func (c Config) storage() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Storage.Capacity,
		NumShards:          c.Storage.NumShards,
		TTL:                c.Storage.TTL,
		EvictionPercentage: c.Storage.EvictionPercentage,
		EvictionInterval:   c.Storage.EvictionInterval,
	}
}
