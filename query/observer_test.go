package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-query-cache/apierr"
	"github.com/goliatone/go-query-cache/cache"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func newCache(t *testing.T, mutate func(*cache.Config)) *cache.Client {
	t.Helper()
	cfg := cache.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := cache.NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	return cfg
}

type counter struct {
	calls atomic.Int32
	value func(n int32) ([]string, error)
}

func (c *counter) fetch(ctx context.Context) ([]string, error) {
	n := c.calls.Add(1)
	if c.value != nil {
		return c.value(n)
	}
	return []string{"Research"}, nil
}

type stateLog struct {
	mu     sync.Mutex
	states []State[[]string]
}

func (l *stateLog) add(s State[[]string]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) last() State[[]string] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return State[[]string]{}
	}
	return l.states[len(l.states)-1]
}

func (l *stateLog) sawLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.states {
		if s.IsLoading {
			return true
		}
	}
	return false
}

func TestObserver_MountFetches(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	obs := New(c, Options[[]string]{Key: c.Key("getCategoryList", cache.Params{"page": 1}), Fn: src.fetch}, testConfig())

	var log stateLog
	unsubscribe := obs.Subscribe(log.add)
	defer unsubscribe()

	assert.Eventually(t, func() bool { return log.last().IsSuccess }, waitFor, tick)
	assert.True(t, log.sawLoading())
	assert.Equal(t, []string{"Research"}, obs.Current().Data)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, obs.Mounted())
}

func TestObserver_SharedKeyFetchesOnce(t *testing.T) {
	c := newCache(t, nil)
	release := make(chan struct{})
	src := &counter{value: func(int32) ([]string, error) {
		<-release
		return []string{"Research"}, nil
	}}
	key := c.Key("getCategoryList", cache.Params{"page": 1})

	first := New(c, Options[[]string]{Key: key, Fn: src.fetch}, testConfig())
	second := New(c, Options[[]string]{Key: key, Fn: src.fetch}, testConfig())
	defer first.Subscribe(nil)()
	defer second.Subscribe(nil)()

	close(release)
	assert.Eventually(t, func() bool { return second.Current().IsSuccess }, waitFor, tick)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestObserver_FreshDataSkipsMountFetch(t *testing.T) {
	c := newCache(t, func(cfg *cache.Config) { cfg.DefaultStaleTime = time.Minute })
	src := &counter{}
	key := c.Key("me", nil)
	c.Set(key, []string{"cached"})

	obs := New(c, Options[[]string]{Key: key, Fn: src.fetch}, testConfig())
	defer obs.Subscribe(nil)()

	assert.Equal(t, []string{"cached"}, obs.Current().Data)
	assert.False(t, obs.Current().IsStale)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestObserver_RefetchOnMountDisabled(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	key := c.Key("me", nil)
	c.Set(key, []string{"cached"})

	cfg := testConfig()
	cfg.SkipRefetchOnMount = true
	obs := New(c, Options[[]string]{Key: key, Fn: src.fetch}, cfg)
	defer obs.Subscribe(nil)()

	assert.True(t, obs.Current().IsStale)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestObserver_InvalidationRefetches(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{value: func(n int32) ([]string, error) {
		if n == 1 {
			return []string{"Research"}, nil
		}
		return []string{"Research", "Teaching"}, nil
	}}
	obs := New(c, Options[[]string]{Key: c.Key("getCategoryList", cache.Params{"page": 1}), Fn: src.fetch}, testConfig())
	defer obs.Subscribe(nil)()

	require.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)

	c.Invalidate(cache.MatchPrefix("getCategoryList"))
	assert.Eventually(t, func() bool { return len(obs.Current().Data) == 2 }, waitFor, tick)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestObserver_DisabledDoesNotFetch(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	cfg := testConfig()
	cfg.Disabled = true
	obs := New(c, Options[[]string]{Key: c.Key("getUserDetail", cache.Params{"id": 1}), Fn: src.fetch}, cfg)
	defer obs.Subscribe(nil)()

	state := obs.Current()
	assert.Equal(t, cache.StatusIdle, state.Status)
	assert.Equal(t, int32(0), src.calls.Load())

	obs.SetEnabled(true)
	assert.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)
}

func TestObserver_ZeroConfigFetchesOnMount(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	obs := New(c, Options[[]string]{Key: c.Key("getAcademicYearList", nil), Fn: src.fetch}, Config{})
	defer obs.Subscribe(nil)()

	assert.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, []string{"Research"}, obs.Current().Data)
}

func TestObserver_SetOptionsMovesKey(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	page1 := c.Key("getCategoryList", cache.Params{"page": 1})
	page2 := c.Key("getCategoryList", cache.Params{"page": 2})

	obs := New(c, Options[[]string]{Key: page1, Fn: src.fetch}, testConfig())
	defer obs.Subscribe(nil)()
	require.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)

	obs.SetOptions(Options[[]string]{Key: page2, Fn: src.fetch})
	assert.Equal(t, page2, obs.Key())
	assert.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)
	assert.Equal(t, 0, c.Subscribers(page1))
	assert.Equal(t, 1, c.Subscribers(page2))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestObserver_RetriesOnlyRetryableErrors(t *testing.T) {
	t.Run("server errors retried", func(t *testing.T) {
		c := newCache(t, nil)
		src := &counter{value: func(n int32) ([]string, error) {
			if n < 3 {
				return nil, apierr.Server(502, "")
			}
			return []string{"ok"}, nil
		}}
		obs := New(c, Options[[]string]{Key: c.Key("getIdeaList", nil), Fn: src.fetch}, testConfig())

		state, err := obs.Refetch(context.Background())
		require.NoError(t, err)
		assert.True(t, state.IsSuccess)
		assert.Equal(t, int32(3), src.calls.Load())
	})

	t.Run("validation errors surface at once", func(t *testing.T) {
		c := newCache(t, nil)
		src := &counter{value: func(int32) ([]string, error) {
			return nil, apierr.Validation(422, "invalid filter")
		}}
		obs := New(c, Options[[]string]{Key: c.Key("getIdeaList", nil), Fn: src.fetch}, testConfig())

		state, err := obs.Refetch(context.Background())
		require.Error(t, err)
		assert.True(t, state.IsError)
		assert.Equal(t, apierr.KindValidation, state.Error.Kind)
		assert.Equal(t, "invalid filter", state.Error.Message)
		assert.Equal(t, int32(1), src.calls.Load())
	})
}

func TestObserver_FocusRefetch(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	focus := NewFocusManager()

	cfg := testConfig()
	cfg.Focus = focus
	cfg.RefetchOnWindowFocus = true
	obs := New(c, Options[[]string]{Key: c.Key("me", nil), Fn: src.fetch}, cfg)
	defer obs.Subscribe(nil)()
	require.Eventually(t, func() bool { return obs.Current().IsSuccess }, waitFor, tick)

	focus.SetFocused(true)
	assert.Equal(t, int32(1), src.calls.Load(), "staying focused is not a transition")

	focus.SetFocused(false)
	focus.SetFocused(true)
	assert.Eventually(t, func() bool { return src.calls.Load() == 2 }, waitFor, tick)
}

func TestObserver_UnsubscribeReleasesCache(t *testing.T) {
	c := newCache(t, nil)
	src := &counter{}
	key := c.Key("me", nil)
	obs := New(c, Options[[]string]{Key: key, Fn: src.fetch}, testConfig())

	unsubA := obs.Subscribe(nil)
	unsubB := obs.Subscribe(nil)
	assert.Equal(t, 1, c.Subscribers(key))

	unsubA()
	assert.True(t, obs.Mounted())
	unsubB()
	assert.False(t, obs.Mounted())
	assert.Equal(t, 0, c.Subscribers(key))
}

func TestObserver_RefetchWithoutFn(t *testing.T) {
	c := newCache(t, nil)
	obs := New(c, Options[[]string]{Key: c.Key("me", nil)}, testConfig())

	_, err := obs.Refetch(context.Background())
	assert.True(t, errors.Is(err, ErrNoFetchFn))
}
