package listview

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var categorySchema = Schema{
	PageParam:     "page",
	PageSizeParam: "page_size",
	SearchParam:   "search",
}

var ideaSchema = Schema{
	PageParam:     "page",
	PageSizeParam: "perPage",
	SortParam:     "sort",
	Filters:       []string{"categoryId", "startDate", "endDate", "tab"},
	Defaults:      map[string]string{"tab": "latest"},
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		schema Schema
		want   FilterState
	}{
		{
			name:   "empty query uses defaults",
			query:  "",
			schema: categorySchema,
			want:   FilterState{Page: 1, PageSize: 10},
		},
		{
			name:   "category view",
			query:  "page=3&page_size=25&search=res",
			schema: categorySchema,
			want:   FilterState{Page: 3, PageSize: 25, Search: "res"},
		},
		{
			name:   "invalid numbers fall back",
			query:  "page=-2&page_size=abc",
			schema: categorySchema,
			want:   FilterState{Page: 1, PageSize: 10},
		},
		{
			name:   "idea view with default tab",
			query:  "page=2&perPage=5&categoryId=4",
			schema: ideaSchema,
			want:   FilterState{Page: 2, PageSize: 5, Extra: map[string]string{"categoryId": "4", "tab": "latest"}},
		},
		{
			name:   "descending sort",
			query:  "sort=-created_at",
			schema: ideaSchema,
			want:   FilterState{Page: 1, PageSize: 10, Sort: &Sort{Field: "created_at", Dir: SortDesc}, Extra: map[string]string{"tab": "latest"}},
		},
		{
			name:   "unknown params ignored",
			query:  "page=1&foo=bar&search=x",
			schema: ideaSchema,
			want:   FilterState{Page: 1, PageSize: 10, Extra: map[string]string{"tab": "latest"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			got := Parse(values, tt.schema)
			assert.True(t, tt.want.Equal(got), "Parse() = %+v, want %+v", got, tt.want)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	states := []struct {
		schema Schema
		state  FilterState
	}{
		{categorySchema, FilterState{Page: 2, PageSize: 10, Search: "research & dev"}},
		{categorySchema, FilterState{Page: 1, PageSize: 50}},
		{ideaSchema, FilterState{Page: 4, PageSize: 5, Sort: &Sort{Field: "views", Dir: SortAsc}, Extra: map[string]string{"tab": "most-viewed", "startDate": "2024-01-01"}}},
	}

	for _, tt := range states {
		encoded := tt.state.Encode(tt.schema)
		decoded := Parse(encoded, tt.schema)
		assert.True(t, tt.state.Equal(decoded), "round trip %+v -> %v -> %+v", tt.state, encoded, decoded)
	}
}

func TestEncode_OmitsEmpty(t *testing.T) {
	values := FilterState{Page: 0, PageSize: 0, Extra: map[string]string{"categoryId": "", "bogus": "1"}}.Encode(ideaSchema)

	assert.Equal(t, "1", values.Get("page"))
	assert.Equal(t, "10", values.Get("perPage"))
	assert.False(t, values.Has("categoryId"))
	assert.False(t, values.Has("bogus"))
	assert.False(t, values.Has("search"))
}

func TestFilterState_CloneIsDeep(t *testing.T) {
	original := FilterState{Page: 1, PageSize: 10, Sort: &Sort{Field: "name"}, Extra: map[string]string{"tab": "latest"}}
	clone := original.Clone()
	clone.Sort.Field = "other"
	clone.Extra["tab"] = "most-popular"

	assert.Equal(t, "name", original.Sort.Field)
	assert.Equal(t, "latest", original.Filter("tab"))
}
