package listview

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const defaultPageSize = 10

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Sort orders a listing by one field.
type Sort struct {
	Field string
	Dir   SortDir
}

// FilterState is the complete, URL representable state of a list view.
type FilterState struct {
	Page     int
	PageSize int
	Search   string
	Sort     *Sort
	Extra    map[string]string
}

// Clone returns a deep copy.
func (s FilterState) Clone() FilterState {
	out := s
	if s.Sort != nil {
		sortCopy := *s.Sort
		out.Sort = &sortCopy
	}
	if s.Extra != nil {
		out.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Equal compares two states field by field. Empty extra values count as absent.
func (s FilterState) Equal(o FilterState) bool {
	if s.Page != o.Page || s.PageSize != o.PageSize || s.Search != o.Search {
		return false
	}
	switch {
	case s.Sort == nil && o.Sort == nil:
	case s.Sort == nil || o.Sort == nil:
		return false
	case *s.Sort != *o.Sort:
		return false
	}
	return extraEqual(s.Extra, o.Extra)
}

// Filter returns the extra filter value for name.
func (s FilterState) Filter(name string) string {
	return s.Extra[name]
}

func extraEqual(a, b map[string]string) bool {
	for k, v := range a {
		if v != "" && b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if v != "" && a[k] != v {
			return false
		}
	}
	return true
}

// Schema maps a FilterState onto query string parameter names.
type Schema struct {
	PageParam     string
	PageSizeParam string
	// SearchParam and SortParam are optional; empty disables them.
	SearchParam string
	SortParam   string
	Filters     []string
	// Defaults fill filters missing from the URL.
	Defaults        map[string]string
	DefaultPageSize int
}

func (sc Schema) pageParam() string {
	if sc.PageParam == "" {
		return "page"
	}
	return sc.PageParam
}

func (sc Schema) pageSizeParam() string {
	if sc.PageSizeParam == "" {
		return "page_size"
	}
	return sc.PageSizeParam
}

func (sc Schema) defaultPageSize() int {
	if sc.DefaultPageSize > 0 {
		return sc.DefaultPageSize
	}
	return defaultPageSize
}

// Parse reads a FilterState from values. Missing or invalid page numbers
// fall back to 1 and the schema's page size.
func Parse(values url.Values, schema Schema) FilterState {
	s := FilterState{
		Page:     positiveInt(values.Get(schema.pageParam()), 1),
		PageSize: positiveInt(values.Get(schema.pageSizeParam()), schema.defaultPageSize()),
	}

	if schema.SearchParam != "" {
		s.Search = values.Get(schema.SearchParam)
	}

	if schema.SortParam != "" {
		if raw := strings.TrimSpace(values.Get(schema.SortParam)); raw != "" {
			dir := SortAsc
			if strings.HasPrefix(raw, "-") {
				dir = SortDesc
				raw = raw[1:]
			}
			if raw != "" {
				s.Sort = &Sort{Field: raw, Dir: dir}
			}
		}
	}

	for _, name := range schema.Filters {
		value := values.Get(name)
		if value == "" {
			value = schema.Defaults[name]
		}
		if value == "" {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]string, len(schema.Filters))
		}
		s.Extra[name] = value
	}

	return s
}

// Encode writes s as query values. Page and page size are always present.
func (s FilterState) Encode(schema Schema) url.Values {
	values := url.Values{}

	page := s.Page
	if page < 1 {
		page = 1
	}
	pageSize := s.PageSize
	if pageSize < 1 {
		pageSize = schema.defaultPageSize()
	}
	values.Set(schema.pageParam(), strconv.Itoa(page))
	values.Set(schema.pageSizeParam(), strconv.Itoa(pageSize))

	if schema.SearchParam != "" && s.Search != "" {
		values.Set(schema.SearchParam, s.Search)
	}

	if schema.SortParam != "" && s.Sort != nil && s.Sort.Field != "" {
		field := s.Sort.Field
		if s.Sort.Dir == SortDesc {
			field = "-" + field
		}
		values.Set(schema.SortParam, field)
	}

	names := make([]string, 0, len(s.Extra))
	for name := range s.Extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := s.Extra[name]; v != "" && schema.hasFilter(name) {
			values.Set(name, v)
		}
	}

	return values
}

func (sc Schema) hasFilter(name string) bool {
	for _, f := range sc.Filters {
		if f == name {
			return true
		}
	}
	return false
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
