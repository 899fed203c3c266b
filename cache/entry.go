package cache

import "time"

// Status is the lifecycle state of a cache entry.
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

// Entry is a snapshot of everything the cache knows about one key.
// Data survives a failed refetch so callers can keep rendering it.
type Entry struct {
	Key          Key
	Data         any
	Status       Status
	Err          error
	FetchedAt    time.Time
	UpdatedAt    time.Time
	StaleAfter   time.Duration
	Invalidated  bool
	Fetching     bool
	FailureCount int
}

// HasData reports whether the entry ever received data.
func (e Entry) HasData() bool {
	return !e.FetchedAt.IsZero()
}

// IsStale reports whether the entry should be refetched at now. A zero
// StaleAfter makes data stale as soon as it arrives.
func (e Entry) IsStale(now time.Time) bool {
	if e.Invalidated || e.FetchedAt.IsZero() || e.StaleAfter <= 0 {
		return true
	}
	return now.Sub(e.FetchedAt) >= e.StaleAfter
}

// EventType tells listeners what happened to an entry.
type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the cache lock has been released.
// It carries no entry; listeners read the current snapshot with Get.
type Event struct {
	Type EventType
	Key  Key
}

// Listener observes changes to one key.
type Listener func(Event)
