package ideahub

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-query-cache/apiclient"
	"github.com/goliatone/go-query-cache/apierr"
)

func validateStruct(message string, structPtr any, fields ...*validation.FieldRules) error {
	if err := validation.ValidateStruct(structPtr, fields...); err != nil {
		return goerrors.FromOzzoValidation(err, message).WithTextCode(apierr.TextCodeValidation)
	}
	return nil
}

// CategoryInput creates or renames a category.
type CategoryInput struct {
	ID   ID     `json:"-"`
	Name string `json:"name"`
}

func (in CategoryInput) Validate() error {
	const msg = "Category name must be at least 2 characters"
	return validateStruct("invalid category", &in,
		validation.Field(&in.Name,
			validation.Required.Error(msg),
			validation.By(minTrimmed(2, msg)),
		),
	)
}

type DepartmentInput struct {
	Name string `json:"name"`
}

func (in DepartmentInput) Validate() error {
	const msg = "Department name must be at least 2 characters"
	return validateStruct("invalid department", &in,
		validation.Field(&in.Name,
			validation.Required.Error(msg),
			validation.By(minTrimmed(2, msg)),
		),
	)
}

// IdeaInput submits a new idea.
type IdeaInput struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	CategoryID   ID     `json:"category_id"`
	DepartmentID ID     `json:"department_id,omitempty"`
	IsAnonymous  bool   `json:"is_anonymous"`
}

func (in IdeaInput) Validate() error {
	return validateStruct("invalid idea", &in,
		validation.Field(&in.Title,
			validation.Required.Error("Title is required"),
			validation.By(minTrimmed(3, "Title must be at least 3 characters")),
		),
		validation.Field(&in.Content, validation.Required.Error("Content is required")),
		validation.Field(&in.CategoryID, validation.Required.Error("Category is required")),
	)
}

// ProfileInput updates a user profile, optionally with a new avatar.
type ProfileInput struct {
	ID     ID              `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   string          `json:"role"`
	Phone  string          `json:"phone"`
	Avatar *apiclient.File `json:"-"`
}

func (in ProfileInput) Validate() error {
	return validateStruct("invalid profile", &in,
		validation.Field(&in.ID, validation.Required.Error("ID is required")),
		validation.Field(&in.Name,
			validation.Required.Error("Name must be at least 3 characters"),
			validation.By(minTrimmed(3, "Name must be at least 3 characters")),
		),
		validation.Field(&in.Email,
			validation.Required.Error("Invalid email address"),
			is.EmailFormat.Error("Invalid email address"),
		),
		validation.Field(&in.Role, validation.Required.Error("Role is required")),
		validation.Field(&in.Phone,
			validation.Required.Error("Phone number is required"),
			validation.By(minTrimmed(3, "Phone number is required")),
		),
	)
}

type PasswordResetInput struct {
	Email string `json:"email"`
}

func (in PasswordResetInput) Validate() error {
	return validateStruct("invalid email", &in,
		validation.Field(&in.Email,
			validation.Required.Error("Invalid email address"),
			is.EmailFormat.Error("Invalid email address"),
		),
	)
}

// ExportOptions select what the idea export download contains.
type ExportOptions struct {
	DepartmentID   ID   `json:"department_id"`
	AcademicYearID ID   `json:"academic_year_id"`
	CSV            bool `json:"csv"`
	ZIP            bool `json:"zip"`
}

func (o ExportOptions) Validate() error {
	return validateStruct("invalid export", &o,
		validation.Field(&o.DepartmentID, validation.Required.Error("Department is required")),
		validation.Field(&o.AcademicYearID, validation.Required.Error("Academic year is required")),
		validation.Field(&o.CSV, validation.By(func(any) error {
			if !o.CSV && !o.ZIP {
				return errors.New("Select at least one export format")
			}
			return nil
		})),
	)
}

func minTrimmed(n int, msg string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if len([]rune(strings.TrimSpace(s))) < n {
			return errors.New(msg)
		}
		return nil
	}
}

func missingID(field string) error {
	return apierr.Validation(0, "ID is required", goerrors.FieldError{Field: field, Message: "ID is required"})
}
