package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus_Taxonomy(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		fields    []goerrors.FieldError
		wantKind  Kind
		retryable bool
	}{
		{name: "unprocessable entity", status: http.StatusUnprocessableEntity, wantKind: KindValidation},
		{name: "bad request with fields", status: http.StatusBadRequest, fields: []goerrors.FieldError{{Field: "name", Message: "required"}}, wantKind: KindValidation},
		{name: "bad request without fields", status: http.StatusBadRequest, wantKind: KindClient},
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: KindAuth},
		{name: "forbidden", status: http.StatusForbidden, wantKind: KindAuth},
		{name: "not found", status: http.StatusNotFound, wantKind: KindClient},
		{name: "conflict", status: http.StatusConflict, wantKind: KindClient},
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: KindServer, retryable: true},
		{name: "internal server error", status: http.StatusInternalServerError, wantKind: KindServer, retryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantKind: KindServer, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromStatus(tt.status, "", tt.fields...)
			require.Error(t, err)

			info := Normalize(err)
			assert.Equal(t, tt.wantKind, info.Kind)
			assert.Equal(t, tt.status, info.Status)
			assert.Equal(t, tt.retryable, info.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.NotEmpty(t, info.Message)
		})
	}
}

func TestNormalize_ValidationFields(t *testing.T) {
	err := Validation(http.StatusUnprocessableEntity, "The given data was invalid.",
		goerrors.FieldError{Field: "name", Message: "Category name must be at least 2 characters"},
		goerrors.FieldError{Field: "name", Message: "second message is ignored"},
		goerrors.FieldError{Field: "email", Message: "Invalid email address"},
	)

	info := Normalize(fmt.Errorf("create category: %w", err))

	assert.Equal(t, KindValidation, info.Kind)
	assert.Equal(t, "The given data was invalid.", info.Message)
	assert.Equal(t, []string{"email", "name"}, info.FieldNames())
	assert.Equal(t, "Category name must be at least 2 characters", info.Fields["name"])
	assert.False(t, info.Retryable)
	assert.True(t, IsValidation(err))
}

func TestNormalize_Network(t *testing.T) {
	err := Network(errors.New("dial tcp: connection refused"), "")
	info := Normalize(err)

	assert.Equal(t, KindNetwork, info.Kind)
	assert.True(t, info.Retryable)
	assert.Equal(t, TextCodeNetwork, info.TextCode)
}

func TestNormalize_ContextErrors(t *testing.T) {
	canceled := Normalize(Network(context.Canceled, "request aborted"))
	assert.Equal(t, KindCanceled, canceled.Kind)
	assert.False(t, canceled.Retryable)

	deadline := Normalize(context.DeadlineExceeded)
	assert.Equal(t, KindNetwork, deadline.Kind)
	assert.True(t, deadline.Retryable)
}

func TestNormalize_PlainError(t *testing.T) {
	info := Normalize(errors.New("boom"))

	assert.Equal(t, KindUnknown, info.Kind)
	assert.Equal(t, "boom", info.Message)
	assert.False(t, info.Retryable)
}

func TestNormalize_Nil(t *testing.T) {
	assert.True(t, Normalize(nil).IsZero())
	assert.False(t, IsRetryable(nil))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(Unauthenticated("")))
	assert.True(t, IsAuth(Forbidden("nope")))
	assert.False(t, IsAuth(Server(http.StatusServiceUnavailable, "")))
}

func TestWithRequestID(t *testing.T) {
	err := WithRequestID(Server(http.StatusBadGateway, ""), "req-1")
	assert.Equal(t, "req-1", Normalize(err).RequestID)

	err = WithRequestID(Unauthenticated(""), "req-2")
	assert.Equal(t, "req-2", Normalize(err).RequestID)

	plain := errors.New("plain")
	assert.Same(t, plain, WithRequestID(plain, "req-3"))
	assert.Nil(t, WithRequestID(nil, "req-4"))
}
