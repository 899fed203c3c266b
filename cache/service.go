package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidResultType is returned when a cached value does not match the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// ErrClientClosed is returned by fetches started after Close.
var ErrClientClosed = errors.New("cache: client closed")

// KeySerializer builds a cache key from a resource name and its params.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(resource string, params Params) Key
}

// FetchFn is the function signature the cache expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service exposes the cache operations query observers and mutations rely on.
// It is exported so that callers can substitute their own backends in tests.
type Service interface {
	Key(resource string, params Params) Key
	Get(key Key) (Entry, bool)
	Set(key Key, data any) Entry
	Invalidate(m Matcher) int
	Remove(m Matcher) int
	Subscribe(key Key, listener Listener) func()
	Fetch(ctx context.Context, key Key, fn FetchFn[any], opts FetchOptions) (any, error)
	Prefetch(key Key, fn FetchFn[any], opts FetchOptions)
	GetOrFetch(ctx context.Context, key Key, fn FetchFn[any], opts FetchOptions) (any, error)
	StaleTime(resource string) time.Duration
	Now() time.Time
}

// MetricsRecorder receives cache activity. Implementations must be safe for
// concurrent use and must not call back into the cache.
type MetricsRecorder interface {
	Hit(resource string)
	Miss(resource string)
	FetchStarted(resource string)
	FetchAttached(resource string)
	FetchFinished(resource string, err error, elapsed time.Duration)
	ResponseDiscarded(resource string)
	Invalidated(resource string)
	Collected(resource string)
}

type nopMetrics struct{}

func (nopMetrics) Hit(string)                                 {}
func (nopMetrics) Miss(string)                                {}
func (nopMetrics) FetchStarted(string)                        {}
func (nopMetrics) FetchAttached(string)                       {}
func (nopMetrics) FetchFinished(string, error, time.Duration) {}
func (nopMetrics) ResponseDiscarded(string)                   {}
func (nopMetrics) Invalidated(string)                         {}
func (nopMetrics) Collected(string)                           {}

// Erase adapts a typed fetch function to the untyped form stored by the cache.
func Erase[T any](fn FetchFn[T]) FetchFn[any] {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// Cast converts cached data to T. A nil value yields the zero T.
func Cast[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidResultType, zero, v)
	}
	return typed, nil
}

// GetOrFetch is a type-safe wrapper function that provides generic support for Service.
func GetOrFetch[T any](ctx context.Context, service Service, key Key, fetchFn FetchFn[T], opts FetchOptions) (T, error) {
	result, err := service.GetOrFetch(ctx, key, Erase(fetchFn), opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Cast[T](result)
}

// Fetch is the typed form of Service.Fetch.
func Fetch[T any](ctx context.Context, service Service, key Key, fetchFn FetchFn[T], opts FetchOptions) (T, error) {
	result, err := service.Fetch(ctx, key, Erase(fetchFn), opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return Cast[T](result)
}
