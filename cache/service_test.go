package cache

import (
	"context"
	"errors"
	"testing"
)

// mockService for testing GetOrFetch function
type mockService struct {
	Service
	result any
	err    error
}

func (m *mockService) GetOrFetch(ctx context.Context, key Key, fetchFn FetchFn[any], opts FetchOptions) (any, error) {
	return m.result, m.err
}

func TestGetOrFetch_NilInterface(t *testing.T) {
	mock := &mockService{result: nil}

	type SomeInterface interface {
		DoSomething() string
	}

	result, err := GetOrFetch[SomeInterface](context.Background(), mock, NewKey("me", nil), func(ctx context.Context) (SomeInterface, error) {
		return nil, nil
	}, DefaultFetchOptions())

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result, got %v", result)
	}
}

func TestGetOrFetch_TypedNilPointer(t *testing.T) {
	type user struct{ Name string }
	var typedNil *user
	mock := &mockService{result: typedNil}

	result, err := GetOrFetch[*user](context.Background(), mock, NewKey("me", nil), func(ctx context.Context) (*user, error) {
		return nil, nil
	}, DefaultFetchOptions())

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil pointer, got %v", result)
	}
}

func TestGetOrFetch_WrongType(t *testing.T) {
	mock := &mockService{result: "not a number"}

	_, err := GetOrFetch[int](context.Background(), mock, NewKey("me", nil), func(ctx context.Context) (int, error) {
		return 0, nil
	}, DefaultFetchOptions())

	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("Expected ErrInvalidResultType, got %v", err)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockService{err: boom}

	_, err := GetOrFetch[int](context.Background(), mock, NewKey("me", nil), func(ctx context.Context) (int, error) {
		return 0, nil
	}, DefaultFetchOptions())

	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative default stale time", mutate: func(c *Config) { c.DefaultStaleTime = -1 }, field: "DefaultStaleTime"},
		{name: "negative resource stale time", mutate: func(c *Config) { c.StaleTimes["me"] = -1 }, field: "StaleTimes[me]"},
		{name: "zero capacity", mutate: func(c *Config) { c.Storage.Capacity = 0 }, field: "Capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfig_StaleTime(t *testing.T) {
	cfg := DefaultConfig().WithStaleTime("me", 0)
	cfg.DefaultStaleTime = 30
	if got := cfg.StaleTime("me"); got != 0 {
		t.Errorf("StaleTime(me) = %v, want 0", got)
	}
	if got := cfg.StaleTime("getIdeaList"); got != 30 {
		t.Errorf("StaleTime(getIdeaList) = %v, want 30", got)
	}
}
