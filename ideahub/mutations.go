package ideahub

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/mutation"
)

type validator interface {
	Validate() error
}

// newMutation validates the input before calling fn. On success the cache
// entries selected by invalidate are marked stale before the hook reports
// success to anyone.
func newMutation[In validator, Out any](s *Service, fn mutation.Fn[In, Out], invalidate func(In) []cache.Matcher, cfg mutation.Config[Out]) *mutation.Mutation[In, Out] {
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	return mutation.New(func(ctx context.Context, in In) (Out, error) {
		if err := in.Validate(); err != nil {
			var zero Out
			return zero, err
		}
		out, err := fn(ctx, in)
		if err != nil {
			return out, err
		}
		if invalidate != nil {
			for _, m := range invalidate(in) {
				s.cache.Invalidate(m)
			}
		}
		return out, nil
	}, cfg)
}

func resources(names ...string) []cache.Matcher {
	return []cache.Matcher{cache.MatchPrefix(names...)}
}

func (s *Service) CreateCategory(cfg mutation.Config[Category]) *mutation.Mutation[CategoryInput, Category] {
	return newMutation(s, func(ctx context.Context, in CategoryInput) (Category, error) {
		env, err := apiclient.SendJSON[Category](ctx, s.api, http.MethodPost, "categories", in)
		return env.Body, err
	}, func(CategoryInput) []cache.Matcher {
		return resources(ResourceCategoryList)
	}, cfg)
}

// UpdateCategory renames the category identified by the input ID.
func (s *Service) UpdateCategory(cfg mutation.Config[Category]) *mutation.Mutation[CategoryInput, Category] {
	return newMutation(s, func(ctx context.Context, in CategoryInput) (Category, error) {
		if in.ID.IsZero() {
			return Category{}, missingID("id")
		}
		env, err := apiclient.SendJSON[Category](ctx, s.api, http.MethodPut, "categories/"+url.PathEscape(in.ID.String()), in)
		return env.Body, err
	}, func(CategoryInput) []cache.Matcher {
		return resources(ResourceCategoryList)
	}, cfg)
}

// CategoryRef names a category to delete.
type CategoryRef struct {
	ID ID `json:"id"`
}

func (r CategoryRef) Validate() error {
	if r.ID.IsZero() {
		return missingID("id")
	}
	return nil
}

func (s *Service) DeleteCategory(cfg mutation.Config[apiclient.Meta]) *mutation.Mutation[CategoryRef, apiclient.Meta] {
	return newMutation(s, func(ctx context.Context, in CategoryRef) (apiclient.Meta, error) {
		env, err := apiclient.SendJSON[any](ctx, s.api, http.MethodDelete, "categories/"+url.PathEscape(in.ID.String()), nil)
		return env.Meta, err
	}, func(CategoryRef) []cache.Matcher {
		return resources(ResourceCategoryList)
	}, cfg)
}

func (s *Service) CreateDepartment(cfg mutation.Config[Department]) *mutation.Mutation[DepartmentInput, Department] {
	return newMutation(s, func(ctx context.Context, in DepartmentInput) (Department, error) {
		env, err := apiclient.SendJSON[Department](ctx, s.api, http.MethodPost, "departments", in)
		return env.Body, err
	}, func(DepartmentInput) []cache.Matcher {
		return resources(ResourceDepartmentList)
	}, cfg)
}

func (s *Service) CreateIdea(cfg mutation.Config[Idea]) *mutation.Mutation[IdeaInput, Idea] {
	return newMutation(s, func(ctx context.Context, in IdeaInput) (Idea, error) {
		env, err := apiclient.SendJSON[Idea](ctx, s.api, http.MethodPost, "ideas", in)
		return env.Body, err
	}, func(IdeaInput) []cache.Matcher {
		return resources(ResourceIdeaList)
	}, cfg)
}

// UpdateProfile saves a user profile. With an avatar the form is sent as
// multipart with a method override, otherwise as JSON. Both the signed in
// user and the detail entry for that user are invalidated.
func (s *Service) UpdateProfile(cfg mutation.Config[User]) *mutation.Mutation[ProfileInput, User] {
	return newMutation(s, func(ctx context.Context, in ProfileInput) (User, error) {
		path := "users/" + url.PathEscape(in.ID.String())
		if in.Avatar == nil {
			env, err := apiclient.SendJSON[User](ctx, s.api, http.MethodPut, path, in)
			return env.Body, err
		}

		avatar := *in.Avatar
		if avatar.Field == "" {
			avatar.Field = "avatar"
		}
		fields := map[string]string{
			"_method": http.MethodPut,
			"id":      in.ID.String(),
			"name":    in.Name,
			"email":   in.Email,
			"role":    in.Role,
			"phone":   in.Phone,
		}
		env, err := apiclient.SendMultipart[User](ctx, s.api, http.MethodPost, path, fields, []apiclient.File{avatar})
		return env.Body, err
	}, func(in ProfileInput) []cache.Matcher {
		return []cache.Matcher{
			cache.MatchPrefix(ResourceMe),
			cache.MatchResource(ResourceUserDetail, cache.Params{"id": in.ID.String()}),
		}
	}, cfg)
}

// RequestPasswordReset asks the server to email a reset link. The result
// is the server's confirmation message.
func (s *Service) RequestPasswordReset(cfg mutation.Config[string]) *mutation.Mutation[PasswordResetInput, string] {
	return newMutation(s, func(ctx context.Context, in PasswordResetInput) (string, error) {
		env, err := apiclient.SendJSON[any](ctx, s.api, http.MethodPost, "reset-password", in)
		return env.Meta.Message, err
	}, nil, cfg)
}

// ExportURL builds the download link for the idea export.
func (s *Service) ExportURL(opts ExportOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	values := url.Values{}
	values.Set("department_id", opts.DepartmentID.String())
	values.Set("academic_year_id", opts.AcademicYearID.String())
	values.Set("csv", flag(opts.CSV))
	values.Set("zip", flag(opts.ZIP))
	return s.api.URL("export/idea-list", values), nil
}

func flag(on bool) string {
	if on {
		return "1"
	}
	return ""
}
