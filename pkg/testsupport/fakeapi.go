package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// Records served by FakeAPI. They mirror the JSON the IdeaHub API returns
// without depending on the client types.

type Category struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	IdeasCount int       `json:"ideas_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Department struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Idea struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CategoryID   int       `json:"category_id"`
	DepartmentID int       `json:"department_id"`
	IsAnonymous  bool      `json:"is_anonymous"`
	IsHidden     bool      `json:"is_hidden"`
	LikesCount   int       `json:"likes_count"`
	Views        int       `json:"views"`
	CreatedAt    time.Time `json:"created_at"`
}

type User struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Phone        string `json:"phone"`
	Avatar       string `json:"avatar,omitempty"`
	DepartmentID int    `json:"department_id,omitempty"`
}

type AcademicYear struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	StartDate        string `json:"start_date"`
	ClosureDate      string `json:"closure_date"`
	FinalClosureDate string `json:"final_closure_date"`
}

// Request is one call the fake API received.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Form        map[string]string
	Files       []string
}

type failure struct {
	status  int
	message string
	times   int
}

// FakeAPI is an in-memory IdeaHub API served over httptest. Routes live
// under /api/.
type FakeAPI struct {
	Server *httptest.Server
	// Token, when set, is required as a bearer token on every request.
	Token string

	mu            sync.Mutex
	nextID        int
	now           time.Time
	categories    []Category
	departments   []Department
	ideas         []Idea
	users         map[int]User
	meID          int
	academicYears []AcademicYear
	requests      []Request
	failures      map[string]*failure
	delay         time.Duration
}

// NewFakeAPI starts a fake API that is closed when t finishes.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := StartFakeAPI()
	t.Cleanup(f.Close)
	return f
}

// StartFakeAPI starts a fake outside of a test, for demos and local
// development. Callers must Close it.
func StartFakeAPI() *FakeAPI {
	f := &FakeAPI{
		nextID:   100,
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		users:    make(map[int]User),
		failures: make(map[string]*failure),
	}
	f.Server = httptest.NewServer(f.router())
	return f
}

// Close shuts the server down.
func (f *FakeAPI) Close() {
	f.Server.Close()
}

// BaseURL is the API root to configure clients with.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api/"
}

func (f *FakeAPI) router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(f.record, f.authenticate, f.inject)

	api.HandleFunc("/categories", f.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", f.createCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", f.updateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id:[0-9]+}", f.deleteCategory).Methods(http.MethodDelete)
	api.HandleFunc("/departments", f.listDepartments).Methods(http.MethodGet)
	api.HandleFunc("/departments", f.createDepartment).Methods(http.MethodPost)
	api.HandleFunc("/ideas", f.listIdeas).Methods(http.MethodGet)
	api.HandleFunc("/ideas", f.createIdea).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", f.getUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}", f.updateUser).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/me", f.getMe).Methods(http.MethodGet)
	api.HandleFunc("/academic-years", f.listAcademicYears).Methods(http.MethodGet)
	api.HandleFunc("/reset-password", f.resetPassword).Methods(http.MethodPost)
	return r
}

// Seeding.

func (f *FakeAPI) AddCategory(name string) Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := Category{ID: f.idLocked(), Name: name, CreatedAt: f.tickLocked()}
	c.UpdatedAt = c.CreatedAt
	f.categories = append(f.categories, c)
	return c
}

func (f *FakeAPI) AddDepartment(name string) Department {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := Department{ID: f.idLocked(), Name: name, CreatedAt: f.tickLocked()}
	f.departments = append(f.departments, d)
	return d
}

// AddIdea stores idea. Zero ID and CreatedAt are filled in.
func (f *FakeAPI) AddIdea(idea Idea) Idea {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idea.ID == 0 {
		idea.ID = f.idLocked()
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = f.tickLocked()
	}
	f.ideas = append(f.ideas, idea)
	return idea
}

// AddUser stores u. The first user added is the one /me returns.
func (f *FakeAPI) AddUser(u User) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		u.ID = f.idLocked()
	}
	f.users[u.ID] = u
	if f.meID == 0 {
		f.meID = u.ID
	}
	return u
}

func (f *FakeAPI) AddAcademicYear(y AcademicYear) AcademicYear {
	f.mu.Lock()
	defer f.mu.Unlock()
	if y.ID == 0 {
		y.ID = f.idLocked()
	}
	f.academicYears = append(f.academicYears, y)
	return y
}

// FailNext makes the next times requests to method and path answer with
// status and message instead of reaching the handler.
func (f *FakeAPI) FailNext(method, path string, status int, message string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = &failure{status: status, message: message, times: times}
}

// SetDelay slows every response down by d.
func (f *FakeAPI) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Requests returns a copy of the request log.
func (f *FakeAPI) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Count reports how many requests hit method and path.
func (f *FakeAPI) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request to method and path.
func (f *FakeAPI) LastRequest(method, path string) (Request, bool) {
	reqs := f.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Request{}, false
}

// Middleware.

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := Request{
			Method:      r.Method,
			Path:        strings.TrimPrefix(r.URL.Path, "/api/"),
			Query:       r.URL.Query(),
			ContentType: r.Header.Get("Content-Type"),
		}
		if strings.HasPrefix(rec.ContentType, "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				rec.Form = make(map[string]string, len(r.MultipartForm.Value))
				for k, v := range r.MultipartForm.Value {
					if len(v) > 0 {
						rec.Form[k] = v[0]
					}
				}
				for field, headers := range r.MultipartForm.File {
					for _, h := range headers {
						rec.Files = append(rec.Files, field+":"+h.Filename)
					}
				}
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		delay := f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.Token != "" && r.Header.Get("Authorization") != "Bearer "+f.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api/")

		f.mu.Lock()
		fail, ok := f.failures[key]
		if ok {
			fail.times--
			if fail.times <= 0 {
				delete(f.failures, key)
			}
		}
		f.mu.Unlock()

		if ok {
			writeJSON(w, fail.status, map[string]any{"meta": map[string]string{"message": fail.message}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers.

func (f *FakeAPI) listCategories(w http.ResponseWriter, r *http.Request) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))

	f.mu.Lock()
	var out []Category
	for _, c := range f.categories {
		if search == "" || strings.Contains(strings.ToLower(c.Name), search) {
			out = append(out, c)
		}
	}
	f.mu.Unlock()

	writePage(w, r, out)
}

func (f *FakeAPI) createCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < 2 {
		writeInvalid(w, "name", "The name must be at least 2 characters.")
		return
	}

	f.mu.Lock()
	for _, c := range f.categories {
		if strings.EqualFold(c.Name, name) {
			f.mu.Unlock()
			writeInvalid(w, "name", "The name has already been taken.")
			return
		}
	}
	f.mu.Unlock()

	writeEnvelope(w, http.StatusCreated, "Category created.", f.AddCategory(name))
}

func (f *FakeAPI) updateCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories[i].Name = strings.TrimSpace(in.Name)
			f.categories[i].UpdatedAt = f.tickLocked()
			writeEnvelope(w, http.StatusOK, "Category updated.", f.categories[i])
			return
		}
	}
	writeNotFound(w)
}

func (f *FakeAPI) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			writeEnvelope(w, http.StatusOK, "Category deleted.", nil)
			return
		}
	}
	writeNotFound(w)
}

func (f *FakeAPI) listDepartments(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(r.URL.Query().Get("user_id"))

	f.mu.Lock()
	out := append([]Department{}, f.departments...)
	if u, ok := f.users[userID]; ok && u.Role != "admin" && u.DepartmentID != 0 {
		out = out[:0]
		for _, d := range f.departments {
			if d.ID == u.DepartmentID {
				out = append(out, d)
			}
		}
	}
	f.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "", out)
}

func (f *FakeAPI) createDepartment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len([]rune(strings.TrimSpace(in.Name))) < 2 {
		writeInvalid(w, "name", "The name must be at least 2 characters.")
		return
	}
	writeEnvelope(w, http.StatusCreated, "Department created.", f.AddDepartment(strings.TrimSpace(in.Name)))
}

func (f *FakeAPI) listIdeas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	departmentID, _ := strconv.Atoi(q.Get("department_id"))
	categoryID, _ := strconv.Atoi(q.Get("category_id"))
	hideHidden := q.Get("is_hidden") == "0"
	start, _ := time.Parse(time.RFC3339, q.Get("start_date"))
	end, _ := time.Parse(time.RFC3339, q.Get("end_date"))

	f.mu.Lock()
	var out []Idea
	for _, idea := range f.ideas {
		switch {
		case departmentID != 0 && idea.DepartmentID != departmentID:
		case categoryID != 0 && idea.CategoryID != categoryID:
		case hideHidden && idea.IsHidden:
		case !start.IsZero() && idea.CreatedAt.Before(start):
		case !end.IsZero() && idea.CreatedAt.After(end):
		default:
			out = append(out, idea)
		}
	}
	f.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		switch q.Get("order_by") {
		case "likes_count":
			return out[i].LikesCount > out[j].LikesCount
		case "views":
			return out[i].Views > out[j].Views
		default:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
	})

	writePage(w, r, out)
}

func (f *FakeAPI) createIdea(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title        string          `json:"title"`
		Content      string          `json:"content"`
		CategoryID   json.RawMessage `json:"category_id"`
		DepartmentID json.RawMessage `json:"department_id"`
		IsAnonymous  bool            `json:"is_anonymous"`
	}
	if !decode(w, r, &in) {
		return
	}
	if len([]rune(strings.TrimSpace(in.Title))) < 3 {
		writeInvalid(w, "title", "The title must be at least 3 characters.")
		return
	}
	idea := f.AddIdea(Idea{
		Title:        in.Title,
		Content:      in.Content,
		CategoryID:   flexInt(in.CategoryID),
		DepartmentID: flexInt(in.DepartmentID),
		IsAnonymous:  in.IsAnonymous,
	})
	writeEnvelope(w, http.StatusCreated, "Idea submitted.", idea)
}

func (f *FakeAPI) getUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u, ok := f.users[pathID(r)]
	f.mu.Unlock()
	if !ok {
		writeNotFound(w)
		return
	}
	writeEnvelope(w, http.StatusOK, "", u)
}

func (f *FakeAPI) updateUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
		Phone string `json:"phone"`
	}
	avatar := ""
	if r.Method == http.MethodPost {
		if r.MultipartForm == nil || r.MultipartForm.Value["_method"] == nil {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		in.Name = r.FormValue("name")
		in.Email = r.FormValue("email")
		in.Role = r.FormValue("role")
		in.Phone = r.FormValue("phone")
		if headers := r.MultipartForm.File["avatar"]; len(headers) > 0 {
			avatar = "/storage/avatars/" + headers[0].Filename
		}
	} else if !decode(w, r, &in) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		writeNotFound(w)
		return
	}
	u.Name, u.Email, u.Role, u.Phone = in.Name, in.Email, in.Role, in.Phone
	if avatar != "" {
		u.Avatar = avatar
	}
	f.users[id] = u
	writeEnvelope(w, http.StatusOK, "Profile updated.", u)
}

func (f *FakeAPI) getMe(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u, ok := f.users[f.meID]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}
	writeEnvelope(w, http.StatusOK, "", u)
}

func (f *FakeAPI) listAcademicYears(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	out := append([]AcademicYear{}, f.academicYears...)
	f.mu.Unlock()
	writeEnvelope(w, http.StatusOK, "", out)
}

func (f *FakeAPI) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}
	writeEnvelope(w, http.StatusOK, "We have emailed your password reset link.", nil)
}

// Helpers.

func (f *FakeAPI) idLocked() int {
	f.nextID++
	return f.nextID
}

func (f *FakeAPI) tickLocked() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

// flexInt reads an id sent either as a number or a string.
func flexInt(raw json.RawMessage) int {
	n, _ := strconv.Atoi(strings.Trim(string(raw), `"`))
	return n
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed JSON."})
		return false
	}
	return true
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = 10
	}

	total := len(items)
	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	from := (page - 1) * perPage
	if from > total {
		from = total
	}
	to := from + perPage
	if to > total {
		to = total
	}

	data := append([]T{}, items[from:to]...)
	writeEnvelope(w, http.StatusOK, "", map[string]any{
		"data":         data,
		"current_page": page,
		"per_page":     perPage,
		"last_page":    lastPage,
		"total":        total,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, message string, body any) {
	writeJSON(w, status, map[string]any{
		"meta": map[string]string{"message": message},
		"body": body,
	})
}

func writeInvalid(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": message,
		"errors":  map[string][]string{field: {message}},
	})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found."})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
