package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/internal/cacheinfra"
	"golang.org/x/sync/singleflight"
)

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for fetch and collection diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics installs a recorder for cache activity.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithKeySerializer replaces the default key serializer.
func WithKeySerializer(s KeySerializer) Option {
	return func(c *Client) {
		if s != nil {
			c.serializer = s
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client is the process wide query cache. All methods are safe for concurrent use.
type Client struct {
	cfg        Config
	serializer KeySerializer
	store      *cacheinfra.Store[Entry]
	flights    singleflight.Group
	metrics    MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	records map[string]*record
	seq     uint64
	nextID  uint64
	closed  bool
}

// record tracks per key bookkeeping that must not be evicted with the data.
// While a key has subscribers its snapshot is pinned here instead of the
// store, so storage TTL and capacity eviction only reach unobserved keys.
type record struct {
	key         Key
	pinned      *Entry
	generation  uint64
	fetching    bool
	flightGen   uint64
	flightSeq   uint64
	subscribers int
	listeners   map[uint64]Listener
	gcTimer     *time.Timer
	gcSeq       uint64
}

func (r *record) listenerList() []Listener {
	if len(r.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

type notification struct {
	listeners []Listener
	event     Event
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cacheinfra.NewStore[Entry](cfg.storage())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:        cfg,
		serializer: defaultSerializer,
		store:      store,
		metrics:    nopMetrics{},
		logger:     slog.Default(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		records:    make(map[string]*record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key serializes resource and params with the configured serializer.
func (c *Client) Key(resource string, params Params) Key {
	return c.serializer.SerializeKey(resource, params)
}

// Now returns the client's current time.
func (c *Client) Now() time.Time {
	return c.now()
}

// StaleTime resolves the configured stale time for resource.
func (c *Client) StaleTime(resource string) time.Duration {
	return c.cfg.StaleTime(resource)
}

// Get returns the entry stored under key.
func (c *Client) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.records[key.String()]; ok {
		return c.loadLocked(rec)
	}
	return c.store.Get(key.String())
}

// Size reports how many entries are held, pinned or stored.
func (c *Client) Size() int {
	c.mu.Lock()
	pinned := 0
	for _, rec := range c.records {
		if rec.pinned != nil {
			pinned++
		}
	}
	c.mu.Unlock()
	return pinned + c.store.Size()
}

// Keys lists the keys that currently have bookkeeping, sorted.
func (c *Client) Keys() []Key {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.records))
	for _, rec := range c.records {
		keys = append(keys, rec.key)
	}
	c.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Subscribers reports how many observers are attached to key.
func (c *Client) Subscribers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.records[key.String()]; ok {
		return rec.subscribers
	}
	return 0
}

// IsFetching reports whether a request for key is in flight.
func (c *Client) IsFetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[key.String()]
	return ok && rec.fetching
}

// Set writes data directly, as if a fetch had just succeeded. Responses of
// requests started before the write are discarded.
func (c *Client) Set(key Key, data any) Entry {
	c.mu.Lock()
	rec := c.recordLocked(key)
	rec.generation = c.nextSeqLocked()

	now := c.now()
	e := c.entryLocked(rec)
	e.Data = data
	e.Status = StatusSuccess
	e.Err = nil
	e.FetchedAt = now
	e.UpdatedAt = now
	e.Invalidated = false
	e.FailureCount = 0
	c.saveLocked(rec, e)

	c.scheduleGCLocked(rec)
	listeners := rec.listenerList()
	c.mu.Unlock()

	notify(notification{listeners: listeners, event: Event{Type: EventUpdated, Key: key}})
	return e
}

// Invalidate marks every matching entry stale and returns how many keys matched.
// In-flight requests for those keys will have their responses discarded.
func (c *Client) Invalidate(m Matcher) int {
	if m == nil {
		return 0
	}

	c.mu.Lock()
	now := c.now()
	var pending []notification
	var resources []string
	for _, rec := range c.records {
		if !m(rec.key) {
			continue
		}
		rec.generation = c.nextSeqLocked()
		if e, ok := c.loadLocked(rec); ok {
			e.Invalidated = true
			e.UpdatedAt = now
			c.saveLocked(rec, e)
		}
		resources = append(resources, rec.key.Resource)
		pending = append(pending, notification{
			listeners: rec.listenerList(),
			event:     Event{Type: EventInvalidated, Key: rec.key},
		})
	}
	c.mu.Unlock()

	for _, resource := range resources {
		c.metrics.Invalidated(resource)
	}
	if len(pending) > 0 {
		c.logger.Debug("invalidated queries", "count", len(pending))
	}
	notify(pending...)
	return len(pending)
}

// InvalidatePrefix is shorthand for Invalidate(MatchPrefix(prefixes...)).
func (c *Client) InvalidatePrefix(prefixes ...string) int {
	return c.Invalidate(MatchPrefix(prefixes...))
}

// Remove deletes every matching entry and returns how many keys matched.
// Subscribed observers are told so they can refetch.
func (c *Client) Remove(m Matcher) int {
	if m == nil {
		return 0
	}

	c.mu.Lock()
	var pending []notification
	for id, rec := range c.records {
		if !m(rec.key) {
			continue
		}
		rec.generation = c.nextSeqLocked()
		rec.pinned = nil
		c.store.Delete(id)
		pending = append(pending, notification{
			listeners: rec.listenerList(),
			event:     Event{Type: EventRemoved, Key: rec.key},
		})
		if rec.subscribers == 0 {
			c.stopGCLocked(rec)
			delete(c.records, id)
		}
	}
	c.mu.Unlock()

	notify(pending...)
	return len(pending)
}

// Subscribe attaches listener to key and keeps the entry alive until the
// returned function is called. listener may be nil to only hold the entry.
func (c *Client) Subscribe(key Key, listener Listener) func() {
	c.mu.Lock()
	rec := c.recordLocked(key)
	rec.subscribers++
	if rec.subscribers == 1 {
		c.pinLocked(rec)
	}
	c.stopGCLocked(rec)
	c.nextID++
	id := c.nextID
	if listener != nil {
		rec.listeners[id] = listener
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(key, id) })
	}
}

func (c *Client) unsubscribe(key Key, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[key.String()]
	if !ok {
		return
	}
	delete(rec.listeners, id)
	if rec.subscribers > 0 {
		rec.subscribers--
	}
	if rec.subscribers == 0 {
		c.unpinLocked(rec)
	}
	c.scheduleGCLocked(rec)
}

// Close cancels in-flight requests and stops collection timers.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, rec := range c.records {
		c.stopGCLocked(rec)
	}
	return nil
}

func (c *Client) nextSeqLocked() uint64 {
	c.seq++
	return c.seq
}

func (c *Client) recordLocked(key Key) *record {
	id := key.String()
	if rec, ok := c.records[id]; ok {
		return rec
	}
	rec := &record{
		key:        key,
		generation: c.nextSeqLocked(),
		listeners:  make(map[uint64]Listener),
	}
	c.records[id] = rec
	return rec
}

func (c *Client) entryLocked(rec *record) Entry {
	if e, ok := c.loadLocked(rec); ok {
		return e
	}
	return Entry{
		Key:        rec.key,
		Status:     StatusIdle,
		StaleAfter: c.cfg.StaleTime(rec.key.Resource),
	}
}

func (c *Client) loadLocked(rec *record) (Entry, bool) {
	if rec.pinned != nil {
		return *rec.pinned, true
	}
	return c.store.Get(rec.key.String())
}

func (c *Client) saveLocked(rec *record, e Entry) {
	if rec.subscribers > 0 {
		rec.pinned = &e
		return
	}
	c.store.Set(rec.key.String(), e)
}

// pinLocked moves the stored snapshot into the record once the key is observed.
func (c *Client) pinLocked(rec *record) {
	if rec.pinned != nil {
		return
	}
	id := rec.key.String()
	if e, ok := c.store.Get(id); ok {
		rec.pinned = &e
		c.store.Delete(id)
	}
}

// unpinLocked hands the snapshot back to the store when the last observer leaves.
func (c *Client) unpinLocked(rec *record) {
	if rec.pinned == nil {
		return
	}
	c.store.Set(rec.key.String(), *rec.pinned)
	rec.pinned = nil
}

func (c *Client) scheduleGCLocked(rec *record) {
	if rec.subscribers > 0 || rec.gcTimer != nil || c.closed || c.cfg.GCGracePeriod < 0 {
		return
	}
	rec.gcSeq++
	seq := rec.gcSeq
	id := rec.key.String()
	rec.gcTimer = time.AfterFunc(c.cfg.GCGracePeriod, func() {
		c.collect(id, seq)
	})
}

func (c *Client) stopGCLocked(rec *record) {
	if rec.gcTimer == nil {
		return
	}
	rec.gcTimer.Stop()
	rec.gcTimer = nil
	rec.gcSeq++
}

func (c *Client) collect(id string, seq uint64) {
	c.mu.Lock()
	rec, ok := c.records[id]
	if !ok || rec.gcSeq != seq || rec.subscribers > 0 {
		c.mu.Unlock()
		return
	}
	rec.gcTimer = nil
	if rec.fetching {
		c.scheduleGCLocked(rec)
		c.mu.Unlock()
		return
	}
	delete(c.records, id)
	rec.pinned = nil
	c.store.Delete(id)
	resource := rec.key.Resource
	c.mu.Unlock()

	c.metrics.Collected(resource)
	c.logger.Debug("collected unused query", "key", id)
}

func notify(pending ...notification) {
	for _, n := range pending {
		for _, l := range n.listeners {
			l(n.event)
		}
	}
}

var _ Service = (*Client)(nil)
