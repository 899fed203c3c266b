// Package mutation runs write requests one at a time per hook and exposes
// their lifecycle. Callers decide what to invalidate in OnSuccess; nothing is
// inferred from the request.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/apierr"
)

// ErrMutationInFlight is returned when a mutation is started while the
// previous one on the same hook has not settled.
var ErrMutationInFlight = errors.New("mutation: already in flight")

// ErrPanicked is wrapped by the failure reported when fn or a callback panics.
var ErrPanicked = errors.New("mutation: panicked")

// TextCodePanic tags failures recovered from a panic.
const TextCodePanic = "MUTATION_PANIC"

// Fn performs the write.
type Fn[In, Out any] func(ctx context.Context, in In) (Out, error)

// Config holds the lifecycle callbacks. All are optional.
type Config[Out any] struct {
	// OnSuccess runs while the hook is still pending, so follow-up
	// invalidation happens before anyone sees the success state.
	OnSuccess func(Out)
	OnError   func(apierr.Info)
	OnSettled func(Out, error)
	Logger    *slog.Logger
}

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Mutation is a single write hook. It is safe for concurrent use.
type Mutation[In, Out any] struct {
	fn     Fn[In, Out]
	cfg    Config[Out]
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	data   Out
	err    error
	info   apierr.Info
	done   chan struct{}
}

// New builds an idle mutation hook.
func New[In, Out any](fn Fn[In, Out], cfg Config[Out]) *Mutation[In, Out] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Mutation[In, Out]{fn: fn, cfg: cfg, logger: logger, done: done}
}

// Mutate starts the write in the background. The request outlives ctx
// cancellation but keeps its values.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) error {
	if err := m.begin(); err != nil {
		return err
	}
	go m.run(context.WithoutCancel(ctx), in)
	return nil
}

// Do runs the write and waits for it to settle. Callbacks still fire.
func (m *Mutation[In, Out]) Do(ctx context.Context, in In) (Out, error) {
	if err := m.begin(); err != nil {
		var zero Out
		return zero, err
	}
	return m.run(ctx, in)
}

// Wait blocks until the current mutation settles or ctx ends.
func (m *Mutation[In, Out]) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutation[In, Out]) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusPending {
		return ErrMutationInFlight
	}
	var zero Out
	m.status = StatusPending
	m.data = zero
	m.err = nil
	m.info = apierr.Info{}
	m.done = make(chan struct{})
	return nil
}

// run settles the hook even when fn or a callback panics: the panic is
// recovered and reported as an ErrPanicked failure.
func (m *Mutation[In, Out]) run(ctx context.Context, in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero Out
			out = zero
			err = goerrors.Wrap(ErrPanicked, goerrors.CategoryInternal, fmt.Sprintf("mutation panicked: %v", r)).
				WithTextCode(TextCodePanic)
			m.logger.Error("mutation panicked", "panic", r)
			m.settle(StatusError, zero, err)
		}
		m.mu.Lock()
		close(m.done)
		m.mu.Unlock()
	}()

	out, err = m.fn(ctx, in)

	if err == nil {
		if m.cfg.OnSuccess != nil {
			m.cfg.OnSuccess(out)
		}
		m.settle(StatusSuccess, out, nil)
	} else {
		var zero Out
		info := m.settle(StatusError, zero, err)
		m.logger.Debug("mutation failed", "kind", info.Kind, "status", info.Status, "error", err)
		if m.cfg.OnError != nil {
			m.cfg.OnError(info)
		}
	}

	if m.cfg.OnSettled != nil {
		m.cfg.OnSettled(out, err)
	}
	return out, err
}

func (m *Mutation[In, Out]) settle(status Status, data Out, err error) apierr.Info {
	var info apierr.Info
	if err != nil {
		info = apierr.Normalize(err)
	}
	m.mu.Lock()
	m.status = status
	m.data = data
	m.err = err
	m.info = info
	m.mu.Unlock()
	return info
}

func (m *Mutation[In, Out]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Mutation[In, Out]) IsPending() bool { return m.Status() == StatusPending }
func (m *Mutation[In, Out]) IsSuccess() bool { return m.Status() == StatusSuccess }
func (m *Mutation[In, Out]) IsError() bool   { return m.Status() == StatusError }

// Error returns the normalized failure of the last mutation.
func (m *Mutation[In, Out]) Error() apierr.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Err returns the raw failure of the last mutation.
func (m *Mutation[In, Out]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Data returns the result of the last successful mutation.
func (m *Mutation[In, Out]) Data() Out {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Reset returns a settled hook to idle. It does nothing while pending.
func (m *Mutation[In, Out]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusPending {
		return
	}
	var zero Out
	m.status = StatusIdle
	m.data = zero
	m.err = nil
	m.info = apierr.Info{}
}
