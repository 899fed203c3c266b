package di

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/config"
	"github.com/goliatone/go-query-cache/ideahub"
	"github.com/goliatone/go-query-cache/internal/logging"
	"github.com/goliatone/go-query-cache/internal/metrics"
	"github.com/goliatone/go-query-cache/listview"
	"github.com/goliatone/go-query-cache/query"
)

const metricsNamespace = "ideahub_admin"

// Container builds and owns every collaborator of the admin client: the
// logger, metrics, query cache, API client, focus manager and the IdeaHub
// service that ties them together.
type Container struct {
	config   config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector
	cache    *cache.Client
	api      *apiclient.Client
	focus    *query.FocusManager
	ideahub  *ideahub.Service
}

type options struct {
	registerer prometheus.Registerer
	httpClient *http.Client
	logOutput  io.Writer
	tokens     apiclient.TokenSource
}

// Option customizes a Container.
type Option func(*options)

// WithRegisterer registers the collectors with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithLogOutput redirects log output, which defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithTokenSource overrides the static API_TOKEN.
func WithTokenSource(ts apiclient.TokenSource) Option {
	return func(o *options) {
		o.tokens = ts
	}
}

// NewContainer validates cfg and wires the client stack.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg}
	c.logger = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: o.logOutput})

	reg := o.registerer
	if reg == nil {
		c.registry = prometheus.NewRegistry()
		reg = c.registry
	}
	collector, err := metrics.New(metricsNamespace, reg)
	if err != nil {
		return nil, err
	}
	c.metrics = collector

	c.cache, err = cache.NewClient(cfg.Cache,
		cache.WithLogger(logging.WithComponent(c.logger, "cache")),
		cache.WithMetrics(collector),
	)
	if err != nil {
		return nil, err
	}

	apiOpts := []apiclient.Option{
		apiclient.WithLogger(logging.WithComponent(c.logger, "apiclient")),
		apiclient.WithRecorder(collector),
	}
	switch {
	case o.tokens != nil:
		apiOpts = append(apiOpts, apiclient.WithTokenSource(o.tokens))
	case cfg.APIToken != "":
		apiOpts = append(apiOpts, apiclient.WithTokenSource(apiclient.StaticToken(cfg.APIToken)))
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	c.api, err = apiclient.New(cfg.API, apiOpts...)
	if err != nil {
		_ = c.cache.Close()
		return nil, err
	}

	c.focus = query.NewFocusManager()
	queryCfg := cfg.Query
	queryCfg.Focus = c.focus

	viewCfg := listview.DefaultConfig()
	viewCfg.Debounce = cfg.SearchDebounce

	c.ideahub = ideahub.NewService(c.api, c.cache,
		ideahub.WithQueryConfig(queryCfg),
		ideahub.WithListViewConfig(viewCfg),
		ideahub.WithLogger(c.logger),
	)
	return c, nil
}

// NewContainerFromEnv loads the configuration from the environment and an
// optional .env file.
func NewContainerFromEnv(opts ...Option) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewContainer(cfg, opts...)
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Registry returns the private registry, or nil when WithRegisterer was used.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Container) Metrics() *metrics.Collector {
	return c.metrics
}

func (c *Container) Cache() *cache.Client {
	return c.cache
}

func (c *Container) API() *apiclient.Client {
	return c.api
}

// Focus drives refetch on window focus for every observer built by the
// IdeaHub service.
func (c *Container) Focus() *query.FocusManager {
	return c.focus
}

func (c *Container) IdeaHub() *ideahub.Service {
	return c.ideahub
}

// Close stops the cache. Pending fetches finish with ErrClientClosed.
func (c *Container) Close() error {
	return c.cache.Close()
}
