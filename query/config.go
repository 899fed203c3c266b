package query

import (
	"time"

	"github.com/goliatone/go-query-cache/apierr"
	"github.com/goliatone/go-query-cache/cache"
)

// UseResourceStaleTime defers to the stale time configured on the cache for
// the observed resource.
const UseResourceStaleTime = cache.UseDefaultStaleTime

// Config tunes one observer. The zero value fetches when mounted, refetches
// stale data on mount and never retries; its StaleTime of zero treats data
// as stale on arrival. DefaultConfig adds retries and the resource stale time.
type Config struct {
	// Disabled stops automatic fetching. Refetch works regardless.
	Disabled       bool
	Retry          int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	StaleTime      time.Duration
	// SkipRefetchOnMount keeps stale data on mount instead of refetching it.
	SkipRefetchOnMount bool
	// RefetchOnWindowFocus needs Focus to be set.
	RefetchOnWindowFocus bool
	ShouldRetry          func(error) bool
	Focus                *FocusManager
}

// DefaultConfig returns the defaults every screen starts from.
func DefaultConfig() Config {
	return Config{
		Retry:          3,
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
		StaleTime:      UseResourceStaleTime,
		ShouldRetry:    apierr.IsRetryable,
	}
}

// FetchOptions converts the retry and staleness settings for the cache.
func (c Config) FetchOptions() cache.FetchOptions {
	opts := cache.FetchOptions{StaleTime: c.StaleTime}
	if c.StaleTime < 0 {
		opts.StaleTime = cache.UseDefaultStaleTime
	}
	if c.Retry > 0 {
		opts.Retry = cache.RetryPolicy{
			MaxRetries:  c.Retry,
			BaseDelay:   c.RetryBaseDelay,
			MaxDelay:    c.RetryMaxDelay,
			ShouldRetry: c.ShouldRetry,
		}
	}
	return opts
}
