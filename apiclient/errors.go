package apiclient

import (
	"encoding/json"
	"net/http"
	"sort"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/apierr"
)

// errorBody covers both the envelope and the plain Laravel error shape.
type errorBody struct {
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Meta    *Meta           `json:"meta"`
}

// decodeError maps a non-2xx response to the apierr taxonomy.
func decodeError(status int, data []byte) error {
	var body errorBody
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	message := body.Message
	if message == "" && body.Meta != nil {
		message = body.Meta.Message
	}
	if message == "" {
		message = http.StatusText(status)
	}

	return apierr.FromStatus(status, message, fieldErrors(body.Errors)...)
}

// fieldErrors accepts {"field": ["msg", ...]} and {"field": "msg"}.
func fieldErrors(raw json.RawMessage) []goerrors.FieldError {
	if len(raw) == 0 {
		return nil
	}

	lists := map[string][]string{}
	if err := json.Unmarshal(raw, &lists); err != nil {
		single := map[string]string{}
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		for field, msg := range single {
			lists[field] = []string{msg}
		}
	}

	names := make([]string, 0, len(lists))
	for name := range lists {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []goerrors.FieldError
	for _, name := range names {
		for _, msg := range lists[name] {
			out = append(out, goerrors.FieldError{Field: name, Message: msg})
		}
	}
	return out
}
