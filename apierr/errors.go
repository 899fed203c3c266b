// Package apierr defines the error taxonomy shared by the API client and the
// query and mutation hooks.
//
// Errors are built with github.com/goliatone/go-errors. Network and server
// failures are *goerrors.RetryableError values, everything else is a plain
// *goerrors.Error, so retry decisions never need to inspect status codes.
// Normalize flattens any error into an Info value suitable for presentation.
package apierr

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind groups failures by how callers are expected to react to them.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindServer     Kind = "server"
	KindClient     Kind = "client"
	KindCanceled   Kind = "canceled"
	KindUnknown    Kind = "unknown"
)

// Text codes attached to the errors built by this package.
const (
	TextCodeNetwork         = "NETWORK_ERROR"
	TextCodeValidation      = "VALIDATION_FAILED"
	TextCodeUnauthenticated = "UNAUTHENTICATED"
	TextCodeForbidden       = "FORBIDDEN"
	TextCodeServer          = "SERVER_ERROR"
	TextCodeRateLimited     = "RATE_LIMITED"
)

// Network wraps a transport failure: the request never reached the server or
// timed out before a response arrived.
func Network(source error, message string) *goerrors.RetryableError {
	if message == "" {
		message = "network request failed"
	}
	return goerrors.WrapRetryable(source, goerrors.CategoryExternal, message).
		WithTextCode(TextCodeNetwork)
}

// Validation builds a field level validation failure. status is the HTTP
// status that produced it, or zero for client side validation.
func Validation(status int, message string, fields ...goerrors.FieldError) *goerrors.Error {
	if message == "" {
		message = "validation failed"
	}
	return goerrors.NewValidation(message, fields...).
		WithCode(status).
		WithTextCode(TextCodeValidation)
}

// Unauthenticated is returned for 401 responses.
func Unauthenticated(message string) *goerrors.Error {
	if message == "" {
		message = "authentication required"
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(TextCodeUnauthenticated)
}

// Forbidden is returned for 403 responses.
func Forbidden(message string) *goerrors.Error {
	if message == "" {
		message = "access denied"
	}
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(TextCodeForbidden)
}

// Server builds a retryable failure for 5xx responses.
func Server(status int, message string) *goerrors.RetryableError {
	if message == "" {
		message = http.StatusText(status)
	}
	return goerrors.NewRetryable(message, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(TextCodeServer)
}

// RateLimited builds a retryable failure for 429 responses.
func RateLimited(message string) *goerrors.RetryableError {
	if message == "" {
		message = "too many requests"
	}
	return goerrors.NewRetryable(message, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(TextCodeRateLimited)
}

// FromStatus maps a non-2xx HTTP status and server supplied message to the
// taxonomy. Field errors are only meaningful for 400 and 422 responses.
func FromStatus(status int, message string, fields ...goerrors.FieldError) error {
	switch {
	case status == http.StatusUnprocessableEntity,
		status == http.StatusBadRequest && len(fields) > 0:
		return Validation(status, message, fields...)
	case status == http.StatusUnauthorized:
		return Unauthenticated(message)
	case status == http.StatusForbidden:
		return Forbidden(message)
	case status == http.StatusTooManyRequests:
		return RateLimited(message)
	case status >= 500:
		return Server(status, message)
	}

	if message == "" {
		message = http.StatusText(status)
	}
	return goerrors.New(message, goerrors.HTTPStatusToCategory(status)).
		WithCode(status).
		WithTextCode(goerrors.HTTPStatusToTextCode(status))
}

// WithRequestID stamps id on err when it belongs to the taxonomy and returns
// err unchanged otherwise.
func WithRequestID(err error, id string) error {
	if err == nil || id == "" {
		return err
	}
	var retryable *goerrors.RetryableError
	if errors.As(err, &retryable) && retryable.BaseError != nil {
		retryable.BaseError.WithRequestID(id)
		return err
	}
	var base *goerrors.Error
	if errors.As(err, &base) {
		base.WithRequestID(id)
	}
	return err
}
