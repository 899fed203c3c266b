package query

import (
	"time"

	"github.com/goliatone/go-query-cache/apierr"
	"github.com/goliatone/go-query-cache/cache"
)

// State is what an observer exposes to its subscribers.
type State[T any] struct {
	Data      T
	HasData   bool
	Status    cache.Status
	Err       error
	Error     apierr.Info
	FetchedAt time.Time

	IsLoading  bool
	IsFetching bool
	IsError    bool
	IsSuccess  bool
	IsStale    bool
}

func stateFrom[T any](e cache.Entry, ok bool, staleTime time.Duration, now time.Time) State[T] {
	if !ok {
		return State[T]{Status: cache.StatusIdle, IsStale: true}
	}
	if staleTime >= 0 {
		e.StaleAfter = staleTime
	}

	s := State[T]{
		HasData:    e.HasData(),
		Status:     e.Status,
		Err:        e.Err,
		FetchedAt:  e.FetchedAt,
		IsFetching: e.Fetching,
		IsStale:    e.IsStale(now),
	}

	if e.HasData() {
		data, err := cache.Cast[T](e.Data)
		if err != nil {
			s.Status = cache.StatusError
			s.Err = err
			s.HasData = false
		} else {
			s.Data = data
		}
	}

	s.Error = apierr.Normalize(s.Err)
	s.IsLoading = s.Status == cache.StatusLoading
	s.IsError = s.Status == cache.StatusError
	s.IsSuccess = s.Status == cache.StatusSuccess
	return s
}
