package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed snapshot store.
// It encapsulates the core sturdyc options needed for store initialization.
type Config struct {
	// Capacity defines the maximum number of entries that the store can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Higher values improve concurrency but increase memory overhead.
	// Must be greater than 0. Default: 64
	NumShards int

	// TTL is the hard retention limit for a snapshot. It is independent of the
	// staleness window used by queries: a stale snapshot is still served while
	// it is refetched, an expired one is gone.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches its capacity. Must be between 1-100.
	// Default: 10 (evict 10% of entries)
	EvictionPercentage int

	// EvictionInterval sets how often the store checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for an interactive client.
func DefaultConfig() Config {
	return Config{
		Capacity:           2000,
		NumShards:          64,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   0, // Use default
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.NumShards > c.Capacity {
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Store keeps immutable snapshots keyed by their serialized cache key.
// Values are copied in and out, callers never share a mutable reference
// with the store.
type Store[T any] struct {
	client *sturdyc.Client[T]
}

// NewStore creates a sturdyc backed store.
// Capacity, NumShards, TTL, EvictionPercentage are passed to sturdyc.New(),
// other options are applied via ToSturdycOptions().
func NewStore[T any](cfg Config) (*Store[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &Store[T]{client: client}, nil
}

// Get returns the snapshot stored under key.
func (s *Store[T]) Get(key string) (T, bool) {
	return s.client.Get(key)
}

// Set replaces the snapshot stored under key.
func (s *Store[T]) Set(key string, value T) {
	s.client.Set(key, value)
}

// Delete removes a single snapshot.
func (s *Store[T]) Delete(key string) {
	s.client.Delete(key)
}

// Size reports the number of stored snapshots.
func (s *Store[T]) Size() int {
	return s.client.Size()
}
