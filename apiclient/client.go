// Package apiclient talks to the IdeaHub REST API. Every response is
// decoded from the {meta, body} envelope and every failure is mapped into
// the apierr taxonomy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/apierr"
)

const (
	tracerName = "github.com/goliatone/go-query-cache/apiclient"

	// HeaderRequestID carries the per request correlation id.
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 10 << 20
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// RequestRecorder observes completed round trips.
type RequestRecorder interface {
	RequestObserved(method string, code int, elapsed time.Duration)
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRecorder(r RequestRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Client performs authenticated JSON requests against the API.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	limiter  *rate.Limiter
	logger   *slog.Logger
	recorder RequestRecorder
	tracer   trace.Tracer
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse base url")
	}

	c := &Client{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL resolves path against the base URL and appends query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	err := c.do(ctx, span, requestID, method, path, query, body, contentType, out)
	if err != nil {
		err = apierr.WithRequestID(err, requestID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, span trace.Span, requestID, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apierr.Network(err, "rate limit wait aborted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryAuth, "token unavailable").
				WithTextCode(apierr.TextCodeUnauthenticated)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return apierr.Network(err, "request failed")
	}
	defer resp.Body.Close()

	c.observe(method, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apierr.Network(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "decode response body").
			WithCode(resp.StatusCode).
			WithTextCode("DECODE_FAILED")
	}
	return nil
}

func (c *Client) observe(method string, code int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RequestObserved(method, code, time.Since(start))
	}
}

// GetJSON fetches path and decodes the envelope.
func GetJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (Envelope[T], error) {
	var env Envelope[T]
	err := c.Do(ctx, http.MethodGet, path, query, nil, "", &env)
	return env, err
}

// SendJSON encodes body as JSON and decodes the envelope of the response.
// A nil body sends no payload.
func SendJSON[T any](ctx context.Context, c *Client, method, path string, body any) (Envelope[T], error) {
	var env Envelope[T]

	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return env, goerrors.Wrap(err, goerrors.CategoryBadInput, "encode request body")
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	err := c.Do(ctx, method, path, nil, reader, contentType, &env)
	return env, err
}
