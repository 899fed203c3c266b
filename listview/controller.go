// Package listview keeps a paginated, filterable listing in sync with the
// URL query string and the query cache.
//
// A Controller tracks two states. The raw state echoes user input at once;
// the committed state drives the URL and the data request. Search input is
// committed after a debounce, every other change is committed immediately.
package listview

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/apierr"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/query"
)

// Paged is implemented by list responses that report pagination.
type Paged interface {
	PageInfo() (current, lastPage, total int)
}

// OptionsFunc derives the query for a committed state.
type OptionsFunc[P Paged] func(FilterState) query.Options[P]

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Config tunes a controller.
type Config struct {
	// Debounce delays search commits. Zero commits on every keystroke.
	Debounce time.Duration
	Query    query.Config
	Logger   *slog.Logger
}

// DefaultConfig debounces search input by 500ms.
func DefaultConfig() Config {
	return Config{
		Debounce: 500 * time.Millisecond,
		Query:    query.DefaultConfig(),
	}
}

// State is the controller snapshot handed to renderers.
type State[P Paged] struct {
	Raw        FilterState
	Committed  FilterState
	Status     Status
	Data       P
	HasData    bool
	IsFetching bool
	Error      apierr.Info
}

// Controller coordinates filter input, URL state and the list query.
type Controller[P Paged] struct {
	nav      Navigator
	schema   Schema
	build    OptionsFunc[P]
	cfg      Config
	logger   *slog.Logger
	observer *query.Observer[P]
	unsub    func()

	mu        sync.Mutex
	raw       FilterState
	committed FilterState
	timer     *time.Timer
	searchSeq uint64
	// commitSeq counts committed changes, appliedSeq the last one pushed to
	// the navigator and the observer. Only one goroutine applies at a time.
	commitSeq  uint64
	appliedSeq uint64
	applying   bool
	listeners  map[uint64]func(State[P])
	nextID     uint64
	closed     bool
}

// New reads the initial state from nav, normalizes the URL and mounts the
// list query.
func New[P Paged](svc cache.Service, nav Navigator, schema Schema, build OptionsFunc[P], cfg Config) *Controller[P] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	initial := Parse(nav.Query(), schema)
	c := &Controller[P]{
		nav:       nav,
		schema:    schema,
		build:     build,
		cfg:       cfg,
		logger:    logger.With("component", "listview"),
		raw:       initial.Clone(),
		committed: initial,
		listeners: make(map[uint64]func(State[P])),
	}

	nav.Replace(initial.Encode(schema))
	c.observer = query.New(svc, build(initial), cfg.Query)
	c.unsub = c.observer.Subscribe(c.onQuery)
	return c
}

// Subscribe registers fn for state changes.
func (c *Controller[P]) Subscribe(fn func(State[P])) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// State returns the current snapshot.
func (c *Controller[P]) State() State[P] {
	c.mu.Lock()
	raw, committed := c.raw.Clone(), c.committed.Clone()
	c.mu.Unlock()

	qs := c.observer.Current()
	s := State[P]{
		Raw:        raw,
		Committed:  committed,
		Data:       qs.Data,
		HasData:    qs.HasData,
		IsFetching: qs.IsFetching,
		Error:      qs.Error,
	}
	switch {
	case qs.IsFetching:
		s.Status = StatusLoading
	case qs.IsError:
		s.Status = StatusError
	case qs.IsSuccess:
		s.Status = StatusSuccess
	default:
		s.Status = StatusIdle
	}
	return s
}

// SetSearch echoes text into the raw state and commits it after the
// debounce. Clearing the search commits at once. A committed search change
// returns to page 1.
func (c *Controller[P]) SetSearch(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.raw.Search = text
	c.stopTimerLocked()

	if text == "" || c.cfg.Debounce <= 0 {
		c.commitLocked(c.searchStateLocked())
		c.mu.Unlock()
		c.apply()
		return
	}

	seq := c.searchSeq
	c.timer = time.AfterFunc(c.cfg.Debounce, func() { c.commitSearch(seq) })
	c.mu.Unlock()

	c.emit()
}

// Flush commits a pending search immediately.
func (c *Controller[P]) Flush() {
	c.mu.Lock()
	pending := c.timer != nil
	seq := c.searchSeq
	c.mu.Unlock()

	if pending {
		c.commitSearch(seq)
	}
}

func (c *Controller[P]) commitSearch(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.searchSeq {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.commitLocked(c.searchStateLocked())
	c.mu.Unlock()

	c.apply()
}

func (c *Controller[P]) searchStateLocked() FilterState {
	next := c.committed.Clone()
	if next.Search != c.raw.Search {
		next.Search = c.raw.Search
		next.Page = 1
		c.raw.Page = 1
	}
	return next
}

// SetPage moves to page n, at least 1.
func (c *Controller[P]) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	c.update(func(s *FilterState) { s.Page = n })
}

// SetPageSize changes the page size, keeping the current page.
func (c *Controller[P]) SetPageSize(n int) {
	if n < 1 {
		n = c.schema.defaultPageSize()
	}
	c.update(func(s *FilterState) { s.PageSize = n })
}

// SetSort orders the listing; nil clears ordering.
func (c *Controller[P]) SetSort(sort *Sort) {
	c.update(func(s *FilterState) {
		if sort == nil {
			s.Sort = nil
			return
		}
		sortCopy := *sort
		s.Sort = &sortCopy
	})
}

// SetFilter sets one extra filter; an empty value removes it.
func (c *Controller[P]) SetFilter(name, value string) {
	c.update(func(s *FilterState) {
		if value == "" {
			delete(s.Extra, name)
			return
		}
		if s.Extra == nil {
			s.Extra = make(map[string]string)
		}
		s.Extra[name] = value
	})
}

// Navigate applies state coming from outside, such as a link or the back
// button. Pending search input is dropped.
func (c *Controller[P]) Navigate(values url.Values) {
	next := Parse(values, c.schema)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.raw = next.Clone()
	c.commitLocked(next)
	c.mu.Unlock()

	c.apply()
}

// Refetch reloads the committed state.
func (c *Controller[P]) Refetch(ctx context.Context) (State[P], error) {
	_, err := c.observer.Refetch(ctx)
	return c.State(), err
}

// Close stops the debounce timer and unmounts the query.
func (c *Controller[P]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.unsub()
}

func (c *Controller[P]) update(mutate func(*FilterState)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := c.committed.Clone()
	mutate(&next)
	raw := c.raw.Clone()
	mutate(&raw)
	raw.Search = c.raw.Search
	c.raw = raw
	c.commitLocked(next)
	c.mu.Unlock()

	c.apply()
}

func (c *Controller[P]) commitLocked(next FilterState) {
	if c.closed || next.Equal(c.committed) {
		return
	}
	c.committed = next.Clone()
	c.commitSeq++
	c.logger.Debug("list state committed", "page", next.Page, "page_size", next.PageSize, "search", next.Search)
}

// apply pushes the latest committed state to the URL and the query. If
// another goroutine is already applying, or a callback re-enters while the
// observer switches keys, that applier picks up the newer state on its next
// round, so the URL and the query always end on the last commit.
func (c *Controller[P]) apply() {
	c.mu.Lock()
	if c.applying {
		c.mu.Unlock()
		return
	}
	c.applying = true
	for !c.closed && c.appliedSeq != c.commitSeq {
		seq := c.commitSeq
		next := c.committed.Clone()
		opts := c.build(next)
		c.mu.Unlock()

		c.nav.Replace(next.Encode(c.schema))
		c.observer.SetOptions(opts)

		c.mu.Lock()
		c.appliedSeq = seq
	}
	c.applying = false
	c.mu.Unlock()

	c.emit()
}

// onQuery clamps the page when the server reports fewer pages than the
// committed page.
func (c *Controller[P]) onQuery(qs query.State[P]) {
	if qs.IsSuccess && qs.HasData && !qs.IsFetching {
		_, lastPage, _ := qs.Data.PageInfo()

		c.mu.Lock()
		page := c.committed.Page
		c.mu.Unlock()

		if lastPage < page {
			target := max(1, lastPage)
			if target != page {
				c.logger.Debug("clamping page", "page", page, "last_page", lastPage)
				c.SetPage(target)
				return
			}
		}
	}
	c.emit()
}

func (c *Controller[P]) emit() {
	c.mu.Lock()
	listeners := make([]func(State[P]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	s := c.State()
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Controller[P]) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.searchSeq++
}
