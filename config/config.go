// Package config reads the admin client settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/internal/logging"
	"github.com/goliatone/go-query-cache/query"
)

// ConfigError names the setting that failed to parse or validate.
type ConfigError = cache.ConfigError

// Config holds every setting the client stack needs.
type Config struct {
	API            apiclient.Config
	APIToken       string
	Log            logging.Options
	Cache          cache.Config
	Query          query.Config
	SearchDebounce time.Duration
}

// Default mirrors the defaults of each component.
func Default() Config {
	return Config{
		API:            apiclient.DefaultConfig(),
		Log:            logging.Options{Level: "info", Format: "text"},
		Cache:          cache.DefaultConfig(),
		Query:          query.DefaultConfig(),
		SearchDebounce: 500 * time.Millisecond,
	}
}

// Load reads .env style files into the process environment and then builds
// the configuration from it. Without arguments an optional ./.env is read.
// Variables already set in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, err
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from lookup. Unset variables keep their
// defaults; malformed ones are reported.
func FromEnv(lookup func(string) string) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	cfg.API.BaseURL = r.str("API_BASE_URL", cfg.API.BaseURL)
	cfg.APIToken = r.str("API_TOKEN", "")
	cfg.API.Timeout = r.millis("API_TIMEOUT_MS", cfg.API.Timeout)
	cfg.API.RateLimit = r.float("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateBurst = r.int("API_RATE_BURST", cfg.API.RateBurst)

	cfg.Log.Level = strings.ToLower(r.str("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(r.str("LOG_FORMAT", cfg.Log.Format))

	cfg.Cache.Storage.Capacity = r.int("CACHE_CAPACITY", cfg.Cache.Storage.Capacity)
	cfg.Cache.Storage.TTL = r.millis("CACHE_TTL_MS", cfg.Cache.Storage.TTL)
	cfg.Cache.DefaultStaleTime = r.millis("CACHE_STALE_MS", cfg.Cache.DefaultStaleTime)
	cfg.Cache.GCGracePeriod = r.millis("CACHE_GC_GRACE_MS", cfg.Cache.GCGracePeriod)

	cfg.Query.Retry = r.int("QUERY_RETRY", cfg.Query.Retry)
	cfg.Query.RetryBaseDelay = r.millis("QUERY_RETRY_BASE_MS", cfg.Query.RetryBaseDelay)

	cfg.SearchDebounce = r.millis("SEARCH_DEBOUNCE_MS", cfg.SearchDebounce)

	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

// Validate checks the settings of every component.
func (c Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Query.Retry < 0 {
		return &ConfigError{Field: "QUERY_RETRY", Message: "must be non-negative"}
	}
	if c.Query.Retry > 0 && c.Query.RetryBaseDelay <= 0 {
		return &ConfigError{Field: "QUERY_RETRY_BASE_MS", Message: "must be greater than 0 when retries are enabled"}
	}
	if c.SearchDebounce < 0 {
		return &ConfigError{Field: "SEARCH_DEBOUNCE_MS", Message: "must be non-negative"}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "LOG_FORMAT", Message: "must be text or json"}
	}
	return nil
}

// reader keeps the first parse failure.
type reader struct {
	lookup func(string) string
	err    error
}

func (r *reader) raw(name string) (string, bool) {
	v := strings.TrimSpace(r.lookup(name))
	return v, v != ""
}

func (r *reader) fail(name, msg string) {
	if r.err == nil {
		r.err = &ConfigError{Field: name, Message: msg}
	}
}

func (r *reader) str(name, def string) string {
	if v, ok := r.raw(name); ok {
		return v
	}
	return def
}

func (r *reader) int(name string, def int) int {
	v, ok := r.raw(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, "must be an integer")
		return def
	}
	return n
}

func (r *reader) float(name string, def float64) float64 {
	v, ok := r.raw(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, "must be a number")
		return def
	}
	return f
}

func (r *reader) millis(name string, def time.Duration) time.Duration {
	v, ok := r.raw(name)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(name, "must be a whole number of milliseconds")
		return def
	}
	return time.Duration(n) * time.Millisecond
}
