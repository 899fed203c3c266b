package ideahub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-query-cache/apierr"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"number", `12`, "12", false},
		{"string", `"abc-1"`, "abc-1", false},
		{"null", `null`, "", false},
		{"object", `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestIDMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}{A: "7", B: "x7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":"x7","c":null}`, string(out))
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "created_at", OrderBy(TabLatest))
	assert.Equal(t, "likes_count", OrderBy(TabMostPopular))
	assert.Equal(t, "views", OrderBy(TabMostViewed))
	assert.Equal(t, "created_at", OrderBy("unknown"))
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)

	start, err := StartOfDay("2025-02-14", loc)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-13T17:00:00.000Z", start)

	end, err := EndOfDay("2025-02-14", loc)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-14T16:59:59.999Z", end)

	_, err = StartOfDay("14/02/2025", loc)
	assert.Error(t, err)
}

func TestInputValidation(t *testing.T) {
	tests := []struct {
		name   string
		input  validator
		fields map[string]string
	}{
		{
			name:   "category too short",
			input:  CategoryInput{Name: " x "},
			fields: map[string]string{"name": "Category name must be at least 2 characters"},
		},
		{
			name:   "category missing",
			input:  CategoryInput{},
			fields: map[string]string{"name": "Category name must be at least 2 characters"},
		},
		{
			name:  "idea",
			input: IdeaInput{Title: "ab"},
			fields: map[string]string{
				"title":       "Title must be at least 3 characters",
				"content":     "Content is required",
				"category_id": "Category is required",
			},
		},
		{
			name:  "profile",
			input: ProfileInput{Name: "Al", Email: "not-an-email", Phone: "1"},
			fields: map[string]string{
				"id":    "ID is required",
				"name":  "Name must be at least 3 characters",
				"email": "Invalid email address",
				"role":  "Role is required",
				"phone": "Phone number is required",
			},
		},
		{
			name:   "export without format",
			input:  ExportOptions{DepartmentID: "1", AcademicYearID: "2"},
			fields: map[string]string{"csv": "Select at least one export format"},
		},
		{
			name:   "department",
			input:  DepartmentInput{Name: "A"},
			fields: map[string]string{"name": "Department name must be at least 2 characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.Error(t, err)

			info := apierr.Normalize(err)
			assert.Equal(t, apierr.KindValidation, info.Kind)
			assert.Equal(t, apierr.TextCodeValidation, info.TextCode)
			assert.Equal(t, tt.fields, info.Fields)
		})
	}
}

func TestInputValidationPasses(t *testing.T) {
	valid := []validator{
		CategoryInput{Name: "Research"},
		DepartmentInput{Name: "Computing"},
		IdeaInput{Title: "Longer hours", Content: "Please", CategoryID: "3"},
		ProfileInput{ID: "1", Name: "Ada", Email: "ada@ideahub.test", Role: RoleAdmin, Phone: "0123"},
		PasswordResetInput{Email: "ada@ideahub.test"},
		ExportOptions{DepartmentID: "1", AcademicYearID: "2", ZIP: true},
	}
	for _, v := range valid {
		assert.NoError(t, v.Validate(), "%T", v)
	}
}
