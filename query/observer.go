// Package query binds a cached resource to any number of subscribers. An
// observer mounts on its first subscriber, fetches when the cached entry is
// missing or stale, and refetches whenever the entry is invalidated.
package query

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-query-cache/cache"
)

// ErrNoFetchFn is returned by Refetch when the options carry no function.
var ErrNoFetchFn = errors.New("query: no fetch function")

// Options identify what an observer reads.
type Options[T any] struct {
	Key cache.Key
	Fn  cache.FetchFn[T]
}

type trigger int

const (
	triggerMount trigger = iota
	triggerFocus
	triggerInvalidate
	triggerChange
)

// Observer watches one cache key on behalf of its subscribers.
type Observer[T any] struct {
	svc cache.Service

	mu         sync.Mutex
	opts       Options[T]
	cfg        Config
	subs       map[uint64]func(State[T])
	nextID     uint64
	cacheUnsub func()
	focusUnsub func()
}

// New builds an unmounted observer.
func New[T any](svc cache.Service, opts Options[T], cfg Config) *Observer[T] {
	return &Observer[T]{
		svc:  svc,
		opts: opts,
		cfg:  cfg,
		subs: make(map[uint64]func(State[T])),
	}
}

// Key returns the key currently observed.
func (o *Observer[T]) Key() cache.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts.Key
}

// Mounted reports whether the observer has subscribers.
func (o *Observer[T]) Mounted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cacheUnsub != nil
}

// Subscribe registers fn for state changes. The first subscriber mounts the
// observer. fn may be nil to only keep the observer mounted.
func (o *Observer[T]) Subscribe(fn func(State[T])) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs[id] = fn
	mount := o.cacheUnsub == nil
	if mount {
		o.cacheUnsub = o.svc.Subscribe(o.opts.Key, o.onEvent)
		if o.cfg.Focus != nil {
			o.focusUnsub = o.cfg.Focus.Subscribe(o.onFocus)
		}
	}
	o.mu.Unlock()

	if mount {
		o.maybeFetch(triggerMount)
	}

	var once sync.Once
	return func() {
		once.Do(func() { o.unsubscribe(id) })
	}
}

func (o *Observer[T]) unsubscribe(id uint64) {
	o.mu.Lock()
	delete(o.subs, id)
	var cacheUnsub, focusUnsub func()
	if len(o.subs) == 0 {
		cacheUnsub, o.cacheUnsub = o.cacheUnsub, nil
		focusUnsub, o.focusUnsub = o.focusUnsub, nil
	}
	o.mu.Unlock()

	// in-flight requests keep running and still populate the cache
	if cacheUnsub != nil {
		cacheUnsub()
	}
	if focusUnsub != nil {
		focusUnsub()
	}
}

// Current reads the state of the observed key.
func (o *Observer[T]) Current() State[T] {
	o.mu.Lock()
	key, staleTime := o.opts.Key, o.cfg.StaleTime
	o.mu.Unlock()

	e, ok := o.svc.Get(key)
	return stateFrom[T](e, ok, staleTime, o.svc.Now())
}

// Refetch fetches the observed key now, joining a request already in flight.
func (o *Observer[T]) Refetch(ctx context.Context) (State[T], error) {
	o.mu.Lock()
	opts, cfg := o.opts, o.cfg
	o.mu.Unlock()

	if opts.Fn == nil {
		return o.Current(), ErrNoFetchFn
	}
	_, err := o.svc.Fetch(ctx, opts.Key, cache.Erase(opts.Fn), cfg.FetchOptions())
	return o.Current(), err
}

// SetOptions switches the observed key or fetch function. A mounted observer
// moves its subscription and fetches the new key when needed.
func (o *Observer[T]) SetOptions(opts Options[T]) {
	o.mu.Lock()
	changed := o.opts.Key != opts.Key
	o.opts = opts
	var oldUnsub func()
	if changed && o.cacheUnsub != nil {
		oldUnsub = o.cacheUnsub
		o.cacheUnsub = o.svc.Subscribe(opts.Key, o.onEvent)
	}
	o.mu.Unlock()

	if oldUnsub == nil {
		return
	}
	oldUnsub()
	o.publish()
	o.maybeFetch(triggerChange)
}

// SetEnabled toggles automatic fetching.
func (o *Observer[T]) SetEnabled(enabled bool) {
	o.mu.Lock()
	wasEnabled := !o.cfg.Disabled
	o.cfg.Disabled = !enabled
	mounted := o.cacheUnsub != nil
	o.mu.Unlock()

	if enabled && !wasEnabled && mounted {
		o.maybeFetch(triggerChange)
	}
}

func (o *Observer[T]) onEvent(ev cache.Event) {
	o.mu.Lock()
	current := o.cacheUnsub != nil && ev.Key == o.opts.Key
	o.mu.Unlock()
	if !current {
		return
	}

	o.publish()
	if ev.Type == cache.EventInvalidated || ev.Type == cache.EventRemoved {
		o.maybeFetch(triggerInvalidate)
	}
}

func (o *Observer[T]) onFocus() {
	o.maybeFetch(triggerFocus)
}

// maybeFetch starts a background fetch when t warrants one for the current
// entry. It must be called without o.mu held.
func (o *Observer[T]) maybeFetch(t trigger) {
	o.mu.Lock()
	opts, cfg := o.opts, o.cfg
	mounted := o.cacheUnsub != nil
	o.mu.Unlock()

	if !mounted || cfg.Disabled || opts.Fn == nil {
		return
	}

	e, ok := o.svc.Get(opts.Key)
	if ok && cfg.StaleTime >= 0 {
		e.StaleAfter = cfg.StaleTime
	}

	var fetch bool
	switch {
	case t == triggerFocus && !cfg.RefetchOnWindowFocus:
		fetch = false
	case !ok || !e.HasData():
		fetch = true
	case !e.IsStale(o.svc.Now()):
		fetch = false
	case t == triggerMount:
		fetch = !cfg.SkipRefetchOnMount
	default:
		fetch = true
	}

	if fetch {
		o.svc.Prefetch(opts.Key, cache.Erase(opts.Fn), cfg.FetchOptions())
	}
}

func (o *Observer[T]) publish() {
	o.mu.Lock()
	subs := make([]func(State[T]), 0, len(o.subs))
	for _, fn := range o.subs {
		if fn != nil {
			subs = append(subs, fn)
		}
	}
	o.mu.Unlock()

	if len(subs) == 0 {
		return
	}
	state := o.Current()
	for _, fn := range subs {
		fn(state)
	}
}
