package apiclient

import (
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Config describes how to reach the IdeaHub API.
type Config struct {
	// BaseURL is the API root, for example https://api.example.com/api/.
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// DefaultConfig returns defaults suitable for the admin client.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "ideahub-admin-go/1.0",
		RateBurst: 1,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var fields []goerrors.FieldError

	if strings.TrimSpace(c.BaseURL) == "" {
		fields = append(fields, goerrors.FieldError{Field: "BaseURL", Message: "is required"})
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fields = append(fields, goerrors.FieldError{Field: "BaseURL", Message: "must be an absolute URL", Value: c.BaseURL})
	}
	if c.Timeout < 0 {
		fields = append(fields, goerrors.FieldError{Field: "Timeout", Message: "must be non-negative", Value: c.Timeout})
	}
	if c.RateLimit < 0 {
		fields = append(fields, goerrors.FieldError{Field: "RateLimit", Message: "must be non-negative", Value: c.RateLimit})
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		fields = append(fields, goerrors.FieldError{Field: "RateBurst", Message: "must be at least 1 when rate limiting", Value: c.RateBurst})
	}

	if len(fields) > 0 {
		return goerrors.NewValidation("invalid api client config", fields...)
	}
	return nil
}
