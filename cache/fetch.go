package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// RetryPolicy controls how a failed fetch is retried inside a single request.
type RetryPolicy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ShouldRetry func(error) bool
}

// NoRetry makes every failure final.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.ShouldRetry == nil {
		return true
	}
	return p.ShouldRetry(err)
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Multiplier = 2
	return b
}

// FetchOptions tune a single fetch.
type FetchOptions struct {
	// StaleTime overrides the resource stale time. Use UseDefaultStaleTime
	// to keep the configured value.
	StaleTime time.Duration
	Retry     RetryPolicy
}

// DefaultFetchOptions uses the configured stale time and no retries.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{StaleTime: UseDefaultStaleTime}
}

var errNilFetchFn = errors.New("cache: nil fetch function")

// Fetch runs fn for key, or joins the request already in flight for the same
// key and generation. The request itself is detached from ctx: cancelling ctx
// only stops waiting.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFn[any], opts FetchOptions) (any, error) {
	ch, err := c.start(key, fn, opts)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch starts a fetch without waiting for it.
func (c *Client) Prefetch(key Key, fn FetchFn[any], opts FetchOptions) {
	if _, err := c.start(key, fn, opts); err != nil {
		c.logger.Debug("prefetch skipped", "key", key.String(), "error", err)
	}
}

// GetOrFetch returns fresh cached data or fetches it.
func (c *Client) GetOrFetch(ctx context.Context, key Key, fn FetchFn[any], opts FetchOptions) (any, error) {
	if e, ok := c.Get(key); ok && e.HasData() && !e.IsStale(c.now()) {
		c.metrics.Hit(key.Resource)
		return e.Data, nil
	}
	c.metrics.Miss(key.Resource)
	return c.Fetch(ctx, key, fn, opts)
}

func (c *Client) start(key Key, fn FetchFn[any], opts FetchOptions) (<-chan singleflight.Result, error) {
	if fn == nil {
		return nil, errNilFetchFn
	}

	id := key.String()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}

	rec := c.recordLocked(key)
	if rec.fetching && rec.flightGen == rec.generation {
		// the flight has not completed yet, so singleflight still holds it
		ch := c.flights.DoChan(flightKey(id, rec.flightGen, rec.flightSeq), func() (any, error) {
			return nil, ErrClientClosed
		})
		c.mu.Unlock()
		c.metrics.FetchAttached(key.Resource)
		return ch, nil
	}

	gen := rec.generation
	seq := c.nextSeqLocked()
	rec.fetching = true
	rec.flightGen = gen
	rec.flightSeq = seq

	e := c.entryLocked(rec)
	e.Fetching = true
	if !e.HasData() {
		e.Status = StatusLoading
	}
	if opts.StaleTime >= 0 {
		e.StaleAfter = opts.StaleTime
	} else {
		e.StaleAfter = c.cfg.StaleTime(key.Resource)
	}
	e.UpdatedAt = c.now()
	c.saveLocked(rec, e)

	started := c.now()
	ch := c.flights.DoChan(flightKey(id, gen, seq), func() (any, error) {
		data, attempts, err := c.execute(key, fn, opts.Retry)
		c.complete(key, gen, seq, data, attempts, err, started)
		return data, err
	})
	listeners := rec.listenerList()
	c.mu.Unlock()

	c.metrics.FetchStarted(key.Resource)
	notify(notification{listeners: listeners, event: Event{Type: EventUpdated, Key: key}})
	return ch, nil
}

func (c *Client) execute(key Key, fn FetchFn[any], policy RetryPolicy) (any, int, error) {
	if policy.MaxRetries <= 0 {
		data, err := fn(c.ctx)
		return data, 1, err
	}

	attempts := 0
	operation := func() (any, error) {
		attempts++
		data, err := fn(c.ctx)
		if err != nil && !policy.retryable(err) {
			return data, backoff.Permanent(err)
		}
		return data, err
	}

	data, err := backoff.Retry(c.ctx, operation,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debug("retrying query", "key", key.String(), "attempt", attempts, "wait", wait, "error", err)
		}),
	)
	return data, attempts, err
}

func (c *Client) complete(key Key, gen, seq uint64, data any, attempts int, err error, started time.Time) {
	id := key.String()

	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		c.metrics.ResponseDiscarded(key.Resource)
		return
	}

	current := rec.flightSeq == seq
	if current {
		rec.fetching = false
	}

	if gen != rec.generation {
		var listeners []Listener
		if current {
			e := c.entryLocked(rec)
			e.Fetching = false
			if e.Status == StatusLoading {
				e.Status = StatusIdle
			}
			c.saveLocked(rec, e)
			listeners = rec.listenerList()
		}
		c.scheduleGCLocked(rec)
		c.mu.Unlock()

		c.metrics.ResponseDiscarded(key.Resource)
		c.logger.Debug("discarded outdated response", "key", id)
		notify(notification{listeners: listeners, event: Event{Type: EventUpdated, Key: key}})
		return
	}

	now := c.now()
	e := c.entryLocked(rec)
	e.Fetching = false
	e.UpdatedAt = now
	if err != nil {
		e.Status = StatusError
		e.Err = err
		e.FailureCount += attempts
	} else {
		e.Status = StatusSuccess
		e.Data = data
		e.Err = nil
		e.FetchedAt = now
		e.Invalidated = false
		e.FailureCount = 0
	}
	c.saveLocked(rec, e)
	c.scheduleGCLocked(rec)
	listeners := rec.listenerList()
	c.mu.Unlock()

	c.metrics.FetchFinished(key.Resource, err, now.Sub(started))
	if err != nil {
		c.logger.Debug("query failed", "key", id, "attempts", attempts, "error", err)
	}
	notify(notification{listeners: listeners, event: Event{Type: EventUpdated, Key: key}})
}

func flightKey(id string, gen, seq uint64) string {
	return id + "#" + strconv.FormatUint(gen, 10) + "#" + strconv.FormatUint(seq, 10)
}
