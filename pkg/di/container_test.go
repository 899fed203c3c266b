package di

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/config"
)

func testConfig(baseURL string) config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 5 * time.Second
	cfg.Log.Level = "error"
	cfg.Query.Retry = 0
	cfg.SearchDebounce = 0
	return cfg
}

func newTestContainer(t *testing.T, cfg config.Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{WithLogOutput(&bytes.Buffer{})}, opts...)
	container, err := NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	return container
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig("http://localhost:8000/api")
	cfg.Cache.Storage.Capacity = 100
	cfg.Cache.Storage.NumShards = 4

	container := newTestContainer(t, cfg)

	if container.Logger() == nil {
		t.Error("Container should have a non-nil logger")
	}
	if container.Cache() == nil {
		t.Error("Container should have a non-nil cache")
	}
	if container.API() == nil {
		t.Error("Container should have a non-nil API client")
	}
	if container.IdeaHub() == nil {
		t.Error("Container should have a non-nil IdeaHub service")
	}
	if container.Focus() == nil || !container.Focus().Focused() {
		t.Error("Container should start focused")
	}
	if container.Registry() == nil {
		t.Error("Container should own a registry when none is supplied")
	}

	stored := container.Config()
	if stored.Cache.Storage.Capacity != 100 {
		t.Errorf("Expected capacity 100, got %d", stored.Cache.Storage.Capacity)
	}
	if got := container.API().URL("categories", nil); got != "http://localhost:8000/api/categories" {
		t.Errorf("Expected base URL with trailing slash, got %q", got)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{name: "missing base url", mutate: func(c *config.Config) { c.API.BaseURL = "" }},
		{name: "zero capacity", mutate: func(c *config.Config) { c.Cache.Storage.Capacity = 0 }, field: "Capacity"},
		{name: "negative debounce", mutate: func(c *config.Config) { c.SearchDebounce = -1 }, field: "SEARCH_DEBOUNCE_MS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://localhost:8000/api/")
			tt.mutate(&cfg)

			_, err := NewContainer(cfg)
			if err == nil {
				t.Fatal("NewContainer() should fail with invalid config")
			}
			if tt.field == "" {
				return
			}
			var cfgErr *cache.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Expected ConfigError for %s, got %v", tt.field, err)
			}
		})
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container := newTestContainer(t, testConfig("http://localhost:8000/api/"))

	if container.Cache() != container.Cache() {
		t.Error("Cache() should return the same instance (singleton behavior)")
	}
	if container.IdeaHub() != container.IdeaHub() {
		t.Error("IdeaHub() should return the same instance (singleton behavior)")
	}
	if container.IdeaHub().Cache() != cache.Service(container.Cache()) {
		t.Error("IdeaHub service should share the container cache")
	}
}

func TestWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	container := newTestContainer(t, testConfig("http://localhost:8000/api/"), WithRegisterer(reg))

	if container.Registry() != nil {
		t.Error("Registry() should be nil when a registerer is supplied")
	}

	// The collectors are already registered, so a second container on the
	// same registry must fail.
	if _, err := NewContainer(testConfig("http://localhost:8000/api/"), WithRegisterer(reg)); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestNewContainerFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://env.ideahub.test/api/")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SEARCH_DEBOUNCE_MS", "50")

	container, err := NewContainerFromEnv(WithLogOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewContainerFromEnv() failed: %v", err)
	}
	defer container.Close()

	if container.Config().SearchDebounce != 50*time.Millisecond {
		t.Errorf("Expected debounce 50ms, got %v", container.Config().SearchDebounce)
	}
	if got := container.API().URL("me", nil); got != "http://env.ideahub.test/api/me" {
		t.Errorf("Expected env base URL, got %q", got)
	}
}
