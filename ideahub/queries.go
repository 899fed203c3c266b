package ideahub

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/apierr"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/query"
)

// Idea list tabs and the sort column each one maps to.
const (
	TabLatest      = "latest"
	TabMostPopular = "most-popular"
	TabMostViewed  = "most-viewed"
)

const (
	dateLayout     = "2006-01-02"
	wireTimeLayout = "2006-01-02T15:04:05.000Z"
)

// OrderBy maps a list tab to the API sort column. Unknown tabs sort by
// creation time.
func OrderBy(tab string) string {
	switch tab {
	case TabMostPopular:
		return "likes_count"
	case TabMostViewed:
		return "views"
	default:
		return "created_at"
	}
}

type CategoryListParams struct {
	Page    int
	PerPage int
	Search  string
}

func (s *Service) CategoryListQuery(p CategoryListParams) query.Options[apiclient.Page[Category]] {
	params := cache.Params{}
	values := url.Values{}
	if p.Page > 0 {
		params["page"] = p.Page
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		params["per_page"] = p.PerPage
		values.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if search := strings.TrimSpace(p.Search); search != "" {
		params["search"] = search
		values.Set("search", search)
	}

	return query.Options[apiclient.Page[Category]]{
		Key: s.cache.Key(ResourceCategoryList, params),
		Fn: func(ctx context.Context) (apiclient.Page[Category], error) {
			env, err := apiclient.GetJSON[apiclient.Page[Category]](ctx, s.api, "categories", values)
			return env.Body, err
		},
	}
}

// DepartmentListQuery lists the departments visible to userID. An empty id
// lists all of them.
func (s *Service) DepartmentListQuery(userID ID) query.Options[[]Department] {
	params := cache.Params{}
	values := url.Values{}
	if !userID.IsZero() {
		params["user_id"] = userID.String()
		values.Set("user_id", userID.String())
	}

	return query.Options[[]Department]{
		Key: s.cache.Key(ResourceDepartmentList, params),
		Fn: func(ctx context.Context) ([]Department, error) {
			env, err := apiclient.GetJSON[[]Department](ctx, s.api, "departments", values)
			return env.Body, err
		},
	}
}

// IdeaListParams filter the idea listing. Dates use the YYYY-MM-DD form and
// are interpreted in the service location.
type IdeaListParams struct {
	DepartmentID ID
	CategoryID   ID
	StartDate    string
	EndDate      string
	Tab          string
	Page         int
	PerPage      int
	// Role of the viewer. Staff never see hidden ideas.
	Role string
}

func (s *Service) IdeaListQuery(p IdeaListParams) query.Options[apiclient.Page[Idea]] {
	orderBy := OrderBy(p.Tab)
	hideHidden := p.Role == RoleStaff

	params := cache.Params{"order_by": orderBy}
	if !p.DepartmentID.IsZero() {
		params["department_id"] = p.DepartmentID.String()
	}
	if !p.CategoryID.IsZero() {
		params["category_id"] = p.CategoryID.String()
	}
	if p.StartDate != "" {
		params["start_date"] = p.StartDate
	}
	if p.EndDate != "" {
		params["end_date"] = p.EndDate
	}
	if p.Page > 0 {
		params["page"] = p.Page
	}
	if p.PerPage > 0 {
		params["per_page"] = p.PerPage
	}
	if hideHidden {
		params["is_hidden"] = 0
	}

	return query.Options[apiclient.Page[Idea]]{
		Key: s.cache.Key(ResourceIdeaList, params),
		Fn: func(ctx context.Context) (apiclient.Page[Idea], error) {
			values, err := s.ideaListValues(p, orderBy, hideHidden)
			if err != nil {
				return apiclient.Page[Idea]{}, err
			}
			env, err := apiclient.GetJSON[apiclient.Page[Idea]](ctx, s.api, "ideas", values)
			return env.Body, err
		},
	}
}

func (s *Service) ideaListValues(p IdeaListParams, orderBy string, hideHidden bool) (url.Values, error) {
	values := url.Values{}
	if !p.DepartmentID.IsZero() {
		values.Set("department_id", p.DepartmentID.String())
	}
	if !p.CategoryID.IsZero() {
		values.Set("category_id", p.CategoryID.String())
	}

	var fields []goerrors.FieldError
	if p.StartDate != "" {
		start, err := StartOfDay(p.StartDate, s.loc)
		if err != nil {
			fields = append(fields, goerrors.FieldError{Field: "start_date", Message: "Invalid start date", Value: p.StartDate})
		} else {
			values.Set("start_date", start)
		}
	}
	if p.EndDate != "" {
		end, err := EndOfDay(p.EndDate, s.loc)
		if err != nil {
			fields = append(fields, goerrors.FieldError{Field: "end_date", Message: "Invalid end date", Value: p.EndDate})
		} else {
			values.Set("end_date", end)
		}
	}
	if len(fields) > 0 {
		return nil, apierr.Validation(0, "invalid date filter", fields...)
	}

	values.Set("order_by", orderBy)
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if hideHidden {
		values.Set("is_hidden", "0")
	}
	return values, nil
}

// StartOfDay returns midnight of date in loc, formatted in UTC for the API.
func StartOfDay(date string, loc *time.Location) (string, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return "", err
	}
	return day.UTC().Format(wireTimeLayout), nil
}

// EndOfDay returns the last millisecond of date in loc, formatted in UTC.
func EndOfDay(date string, loc *time.Location) (string, error) {
	day, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return "", err
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return end.UTC().Format(wireTimeLayout), nil
}

func (s *Service) UserDetailQuery(id ID) query.Options[User] {
	return query.Options[User]{
		Key: s.cache.Key(ResourceUserDetail, cache.Params{"id": id.String()}),
		Fn: func(ctx context.Context) (User, error) {
			env, err := apiclient.GetJSON[User](ctx, s.api, "users/"+url.PathEscape(id.String()), nil)
			return env.Body, err
		},
	}
}

// MeQuery reads the signed in user.
func (s *Service) MeQuery() query.Options[User] {
	return query.Options[User]{
		Key: s.cache.Key(ResourceMe, nil),
		Fn: func(ctx context.Context) (User, error) {
			env, err := apiclient.GetJSON[User](ctx, s.api, "me", nil)
			return env.Body, err
		},
	}
}

func (s *Service) AcademicYearListQuery() query.Options[[]AcademicYear] {
	return query.Options[[]AcademicYear]{
		Key: s.cache.Key(ResourceAcademicYearList, nil),
		Fn: func(ctx context.Context) ([]AcademicYear, error) {
			env, err := apiclient.GetJSON[[]AcademicYear](ctx, s.api, "academic-years", nil)
			return env.Body, err
		},
	}
}

func read[T any](ctx context.Context, s *Service, opts query.Options[T]) (T, error) {
	return cache.GetOrFetch(ctx, s.cache, opts.Key, opts.Fn, s.QueryConfig(opts.Key.Resource).FetchOptions())
}

// ListCategories reads through the cache without mounting an observer.
func (s *Service) ListCategories(ctx context.Context, p CategoryListParams) (apiclient.Page[Category], error) {
	return read(ctx, s, s.CategoryListQuery(p))
}

func (s *Service) ListDepartments(ctx context.Context, userID ID) ([]Department, error) {
	return read(ctx, s, s.DepartmentListQuery(userID))
}

func (s *Service) ListIdeas(ctx context.Context, p IdeaListParams) (apiclient.Page[Idea], error) {
	return read(ctx, s, s.IdeaListQuery(p))
}

func (s *Service) UserDetail(ctx context.Context, id ID) (User, error) {
	return read(ctx, s, s.UserDetailQuery(id))
}

func (s *Service) Me(ctx context.Context) (User, error) {
	return read(ctx, s, s.MeQuery())
}

func (s *Service) ListAcademicYears(ctx context.Context) ([]AcademicYear, error) {
	return read(ctx, s, s.AcademicYearListQuery())
}
