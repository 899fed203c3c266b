package apierr

import (
	"context"
	"errors"
	"net"
	"sort"

	goerrors "github.com/goliatone/go-errors"
)

// Info is the normalized, presentation ready shape of a failure.
type Info struct {
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Status    int               `json:"status,omitempty"`
	TextCode  string            `json:"text_code,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable"`
	RequestID string            `json:"request_id,omitempty"`
}

// IsZero reports whether the Info describes no failure at all.
func (i Info) IsZero() bool {
	return i.Kind == "" && i.Message == ""
}

// FieldNames returns the names of the fields carrying a message, sorted.
func (i Info) FieldNames() []string {
	names := make([]string, 0, len(i.Fields))
	for name := range i.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize flattens err into an Info. A nil error yields the zero Info.
func Normalize(err error) Info {
	if err == nil {
		return Info{}
	}

	info := Info{Kind: KindUnknown, Message: err.Error()}

	var base *goerrors.Error
	var retryable *goerrors.RetryableError
	switch {
	case errors.As(err, &retryable) && retryable.BaseError != nil:
		base = retryable.BaseError
		info.Retryable = retryable.IsRetryable()
	case errors.As(err, &base):
	}

	if base != nil {
		info.Message = base.Message
		info.Status = base.Code
		info.TextCode = base.TextCode
		info.RequestID = base.RequestID
		info.Kind = kindOf(base)
		if fields := base.AllValidationErrors(); len(fields) > 0 {
			info.Fields = make(map[string]string, len(fields))
			for _, f := range fields {
				if _, seen := info.Fields[f.Field]; !seen {
					info.Fields[f.Field] = f.Message
				}
			}
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		info.Kind = KindCanceled
		info.Retryable = false
	case errors.Is(err, context.DeadlineExceeded) && base == nil:
		info.Kind = KindNetwork
		info.Retryable = true
	case base == nil && isNetError(err):
		info.Kind = KindNetwork
		info.Retryable = true
	}

	return info
}

// IsRetryable reports whether err should be retried by a query. Only network
// and server failures qualify.
func IsRetryable(err error) bool {
	return Normalize(err).Retryable
}

// IsAuth reports whether err signals a missing or rejected session.
func IsAuth(err error) bool {
	return Normalize(err).Kind == KindAuth
}

// IsValidation reports whether err carries field level validation detail.
func IsValidation(err error) bool {
	return Normalize(err).Kind == KindValidation
}

func kindOf(e *goerrors.Error) Kind {
	switch e.Category {
	case goerrors.CategoryValidation:
		return KindValidation
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return KindAuth
	case goerrors.CategoryRateLimit:
		return KindServer
	case goerrors.CategoryExternal:
		if e.TextCode == TextCodeNetwork {
			return KindNetwork
		}
		return KindServer
	case goerrors.CategoryNotFound, goerrors.CategoryConflict, goerrors.CategoryBadInput,
		goerrors.CategoryMethodNotAllowed:
		return KindClient
	}

	switch {
	case e.Code >= 500:
		return KindServer
	case e.Code >= 400:
		return KindClient
	}
	return KindUnknown
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
