package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records query cache and API client activity.
type Collector struct {
	CacheLookups      *prometheus.CounterVec
	Fetches           *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	DiscardedResults  *prometheus.CounterVec
	Invalidations     *prometheus.CounterVec
	Collections       *prometheus.CounterVec
	APIRequests       *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
}

// New creates the collector and registers it with reg. A nil registerer
// leaves the metrics unregistered, which is handy in tests.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_cache_lookups_total",
				Help:      "Total number of cache lookups",
			},
			[]string{"resource", "result"}, // result: hit, miss
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_fetches_total",
				Help:      "Total number of query fetches",
			},
			[]string{"resource", "status"}, // status: started, attached, success, failed
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_fetch_duration_seconds",
				Help:      "Duration of query fetches in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"resource"},
		),
		DiscardedResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_discarded_results_total",
				Help:      "Total number of responses dropped because newer data existed",
			},
			[]string{"resource"},
		),
		Invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_invalidations_total",
				Help:      "Total number of invalidated cache entries",
			},
			[]string{"resource"},
		),
		Collections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_collections_total",
				Help:      "Total number of unused entries collected",
			},
			[]string{"resource"},
		),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of HTTP requests made to the backend",
			},
			[]string{"method", "code"},
		),
		APIRequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Duration of backend HTTP requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		),
	}

	if reg != nil {
		for _, collector := range c.collectors() {
			if err := reg.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.CacheLookups,
		c.Fetches,
		c.FetchDuration,
		c.DiscardedResults,
		c.Invalidations,
		c.Collections,
		c.APIRequests,
		c.APIRequestLatency,
	}
}

func (c *Collector) Hit(resource string) {
	c.CacheLookups.WithLabelValues(resource, "hit").Inc()
}

func (c *Collector) Miss(resource string) {
	c.CacheLookups.WithLabelValues(resource, "miss").Inc()
}

func (c *Collector) FetchStarted(resource string) {
	c.Fetches.WithLabelValues(resource, "started").Inc()
}

func (c *Collector) FetchAttached(resource string) {
	c.Fetches.WithLabelValues(resource, "attached").Inc()
}

func (c *Collector) FetchFinished(resource string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	c.Fetches.WithLabelValues(resource, status).Inc()
	c.FetchDuration.WithLabelValues(resource).Observe(elapsed.Seconds())
}

func (c *Collector) ResponseDiscarded(resource string) {
	c.DiscardedResults.WithLabelValues(resource).Inc()
}

func (c *Collector) Invalidated(resource string) {
	c.Invalidations.WithLabelValues(resource).Inc()
}

func (c *Collector) Collected(resource string) {
	c.Collections.WithLabelValues(resource).Inc()
}

// RequestObserved records one backend HTTP round trip. A zero code means
// the request never produced a response.
func (c *Collector) RequestObserved(method string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	c.APIRequests.WithLabelValues(method, label).Inc()
	c.APIRequestLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}
