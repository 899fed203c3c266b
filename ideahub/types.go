package ideahub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Resource names used as cache key prefixes.
const (
	ResourceCategoryList     = "getCategoryList"
	ResourceDepartmentList   = "getDepartmentList"
	ResourceIdeaList         = "getIdeaList"
	ResourceUserDetail       = "getUserDetail"
	ResourceMe               = "me"
	ResourceAcademicYearList = "getAcademicYearList"
)

// Roles known to the admin client.
const (
	RoleAdmin         = "admin"
	RoleStaff         = "staff"
	RoleQAManager     = "qa_manager"
	RoleQACoordinator = "qa_coordinator"
)

// ID is a record identifier. The API is inconsistent about sending ids as
// numbers or strings, so both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("ideahub: invalid id %s", data)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON writes numeric ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

// IDFromInt formats a numeric id.
func IDFromInt(n int) ID {
	return ID(strconv.Itoa(n))
}

type Category struct {
	ID         ID        `json:"id"`
	Name       string    `json:"name"`
	IdeasCount int       `json:"ideas_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Department struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Idea struct {
	ID           ID        `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CategoryID   ID        `json:"category_id"`
	DepartmentID ID        `json:"department_id"`
	Category     *Category `json:"category,omitempty"`
	User         *User     `json:"user,omitempty"`
	IsAnonymous  bool      `json:"is_anonymous"`
	IsHidden     bool      `json:"is_hidden"`
	LikesCount   int       `json:"likes_count"`
	Views        int       `json:"views"`
	CreatedAt    time.Time `json:"created_at"`
}

type LoginInfo struct {
	CreatedAt string `json:"created_at"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

type User struct {
	ID           ID           `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	Phone        string       `json:"phone"`
	Profile      string       `json:"profile,omitempty"`
	Avatar       string       `json:"avatar,omitempty"`
	DepartmentID ID           `json:"department_id,omitempty"`
	IsDisable    int          `json:"is_disable"`
	LastLoginAt  *LoginInfo   `json:"last_login_at,omitempty"`
	Departments  []Department `json:"departments"`
}

// IsStaff reports whether hidden ideas must be filtered out for u.
func (u User) IsStaff() bool {
	return u.Role == RoleStaff
}

type AcademicYear struct {
	ID               ID     `json:"id"`
	Name             string `json:"name"`
	StartDate        string `json:"start_date"`
	ClosureDate      string `json:"closure_date"`
	FinalClosureDate string `json:"final_closure_date"`
}
