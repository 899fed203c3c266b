// Package ideahub wires the IdeaHub admin API into the query cache: typed
// query builders, mutation hooks with their invalidation rules, and the list
// views the admin screens render.
package ideahub

import (
	"log/slog"
	"time"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/listview"
	"github.com/goliatone/go-query-cache/query"
)

// Service builds queries and mutations against one API client and cache.
type Service struct {
	api      *apiclient.Client
	cache    cache.Service
	queryCfg query.Config
	viewCfg  listview.Config
	loc      *time.Location
	logger   *slog.Logger
}

type Option func(*Service)

// WithQueryConfig sets the defaults used by every observer the service
// creates.
func WithQueryConfig(cfg query.Config) Option {
	return func(s *Service) {
		s.queryCfg = cfg
	}
}

// WithListViewConfig sets the debounce used by list views. Its Query field
// is replaced by the service query config.
func WithListViewConfig(cfg listview.Config) Option {
	return func(s *Service) {
		s.viewCfg = cfg
	}
}

// WithLocation sets the time zone date filters are expanded in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(api *apiclient.Client, svc cache.Service, opts ...Option) *Service {
	s := &Service{
		api:      api,
		cache:    svc,
		queryCfg: query.DefaultConfig(),
		viewCfg:  listview.DefaultConfig(),
		loc:      time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ideahub")
	s.viewCfg.Query = s.queryCfg
	if s.viewCfg.Logger == nil {
		s.viewCfg.Logger = s.logger
	}
	return s
}

// Cache returns the cache the service reads and invalidates.
func (s *Service) Cache() cache.Service {
	return s.cache
}

// QueryConfig returns the observer config for resource. The department list
// is never retried.
func (s *Service) QueryConfig(resource string) query.Config {
	cfg := s.queryCfg
	if resource == ResourceDepartmentList {
		cfg.Retry = 0
	}
	return cfg
}

// Observe creates an observer for opts using the config of its resource.
func Observe[T any](s *Service, opts query.Options[T]) *query.Observer[T] {
	return query.New(s.cache, opts, s.QueryConfig(opts.Key.Resource))
}
