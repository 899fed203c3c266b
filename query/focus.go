package query

import "sync"

// FocusManager tracks whether the application window has focus and tells
// observers when it is regained.
type FocusManager struct {
	mu        sync.Mutex
	focused   bool
	listeners map[uint64]func()
	nextID    uint64
}

// NewFocusManager starts focused.
func NewFocusManager() *FocusManager {
	return &FocusManager{
		focused:   true,
		listeners: make(map[uint64]func()),
	}
}

// SetFocused records the focus state. Listeners run only on the transition
// from unfocused to focused.
func (f *FocusManager) SetFocused(focused bool) {
	f.mu.Lock()
	regained := focused && !f.focused
	f.focused = focused
	var listeners []func()
	if regained {
		listeners = make([]func(), 0, len(f.listeners))
		for _, l := range f.listeners {
			listeners = append(listeners, l)
		}
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

func (f *FocusManager) Focused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

// Subscribe registers fn and returns its removal function.
func (f *FocusManager) Subscribe(fn func()) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}
