package testsupport

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Meta struct {
		Message string `json:"message"`
	} `json:"meta"`
	Body json.RawMessage `json:"body"`
}

type page struct {
	Data        []json.RawMessage `json:"data"`
	CurrentPage int               `json:"current_page"`
	LastPage    int               `json:"last_page"`
	Total       int               `json:"total"`
}

func call(t *testing.T, f *FakeAPI, method, path, body string) (*http.Response, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, f.BaseURL()+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func TestFakeAPI_CategoryPagingAndSearch(t *testing.T) {
	f := NewFakeAPI(t)
	for _, name := range []string{"Research", "Teaching", "Research Labs"} {
		f.AddCategory(name)
	}

	resp, env := call(t, f, http.MethodGet, "categories?search=research&per_page=1&page=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p page
	require.NoError(t, json.Unmarshal(env.Body, &p))
	assert.Equal(t, 2, p.Total)
	assert.Equal(t, 2, p.LastPage)
	assert.Equal(t, 2, p.CurrentPage)
	require.Len(t, p.Data, 1)
	assert.Contains(t, string(p.Data[0]), "Research Labs")

	req, ok := f.LastRequest(http.MethodGet, "categories")
	require.True(t, ok)
	assert.Equal(t, "research", req.Query.Get("search"))
}

func TestFakeAPI_ValidationError(t *testing.T) {
	f := NewFakeAPI(t)

	resp, _ := call(t, f, http.MethodPost, "categories", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	f.AddCategory("Research")
	resp, _ = call(t, f, http.MethodPost, "categories", `{"name":"research"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestFakeAPI_FailNext(t *testing.T) {
	f := NewFakeAPI(t)
	f.FailNext(http.MethodGet, "academic-years", http.StatusServiceUnavailable, "maintenance", 2)

	for i := 0; i < 2; i++ {
		resp, env := call(t, f, http.MethodGet, "academic-years", "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "maintenance", env.Meta.Message)
	}

	resp, _ := call(t, f, http.MethodGet, "academic-years", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, f.Count(http.MethodGet, "academic-years"))
}

func TestFakeAPI_Token(t *testing.T) {
	f := NewFakeAPI(t)
	f.Token = "secret"

	resp, _ := call(t, f, http.MethodGet, "me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFakeAPI_IdeaFilters(t *testing.T) {
	f := NewFakeAPI(t)
	f.Load(DefaultSeed(t))
	computing := f.departments[0].ID

	_, env := call(t, f, http.MethodGet, "ideas?order_by=likes_count&is_hidden=0&department_id="+itoa(computing), "")
	var p page
	require.NoError(t, json.Unmarshal(env.Body, &p))
	require.Len(t, p.Data, 2)
	assert.Contains(t, string(p.Data[0]), "Peer tutoring")

	_, env = call(t, f, http.MethodGet, "ideas?order_by=views&department_id="+itoa(computing), "")
	require.NoError(t, json.Unmarshal(env.Body, &p))
	require.Len(t, p.Data, 3)
	assert.Contains(t, string(p.Data[0]), "Quiet rooms")

	_, env = call(t, f, http.MethodGet, "ideas?start_date=2025-02-13T00:00:00.000Z&end_date=2025-02-14T23:59:59.999Z", "")
	require.NoError(t, json.Unmarshal(env.Body, &p))
	require.Len(t, p.Data, 1)
	assert.Contains(t, string(p.Data[0]), "Quiet rooms")
}

func TestFakeAPI_MultipartProfileUpdate(t *testing.T) {
	f := NewFakeAPI(t)
	u := f.AddUser(User{Name: "Ada", Email: "ada@ideahub.test", Role: "admin", Phone: "0123"})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("_method", "PUT"))
	require.NoError(t, w.WriteField("name", "Ada L"))
	require.NoError(t, w.WriteField("email", "ada@ideahub.test"))
	require.NoError(t, w.WriteField("role", "admin"))
	require.NoError(t, w.WriteField("phone", "0123"))
	part, err := w.CreateFormFile("avatar", "ada.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, f.BaseURL()+"users/"+itoa(u.ID), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, ok := f.LastRequest(http.MethodPost, "users/"+itoa(u.ID))
	require.True(t, ok)
	assert.Equal(t, "PUT", rec.Form["_method"])
	assert.Equal(t, []string{"avatar:ada.png"}, rec.Files)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Ada L", f.users[u.ID].Name)
	assert.Equal(t, "/storage/avatars/ada.png", f.users[u.ID].Avatar)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
