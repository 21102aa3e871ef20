package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/store"
	"github.com/jbweber/homelab/genrepo/internal/store/memory"
	"github.com/jbweber/homelab/genrepo/internal/store/sqlite"
	"github.com/jbweber/homelab/genrepo/internal/testutil"
)

func ptr(v int64) *int64 { return &v }

// seed stores one city, two companies and three users.
func seed(t *testing.T, b store.Backend) {
	t.Helper()
	ctx := context.Background()
	m := domain.NewModel(store.NewSession(b))

	require.NoError(t, m.Cities.Add(&domain.City{ID: 1, Name: "Springfield"}))
	require.NoError(t, m.Companies.Add(
		&domain.Company{ID: 1, Name: "Acme", CityID: ptr(1)},
		&domain.Company{ID: 2, Name: "Globex"},
	))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Users.Add(
		&domain.User{ID: 1, Name: "b", Email: "b@example.com", CompanyID: ptr(1), CreatedAt: now},
		&domain.User{ID: 2, Name: "a", Email: "a@example.com", CompanyID: ptr(2), CreatedAt: now},
		&domain.User{ID: 3, Name: "c", Email: "c@example.com", CompanyID: ptr(1), CreatedAt: now},
	))
	_, err := m.Session.Persist(ctx)
	require.NoError(t, err)
}

func setupTestAPI(t *testing.T) http.Handler {
	t.Helper()
	b := memory.New()
	seed(t, b)
	return NewAPI(b, nil).Router()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeUsers(t *testing.T, w *httptest.ResponseRecorder) []UserResponse {
	t.Helper()
	var users []UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&users))
	return users
}

func ids(users []UserResponse) []int64 {
	out := make([]int64, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestRootHandler(t *testing.T) {
	r := setupTestAPI(t)
	w := do(t, r, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "genrepo service is running!")
}

func TestListUsers_ProviderOrder(t *testing.T) {
	r := setupTestAPI(t)
	w := do(t, r, "GET", "/api/v0/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, []int64{1, 2, 3}, ids(decodeUsers(t, w)))
}

func TestListUsers_Sort(t *testing.T) {
	r := setupTestAPI(t)

	tests := []struct {
		name string
		sort string
		want []int64
	}{
		{"name ascending", "Name", []int64{2, 1, 3}},
		{"name descending", "Name:desc", []int64{3, 1, 2}},
		{"company then id descending", "CompanyID,ID:desc", []int64{3, 1, 2}},
		{"id descending", "ID:DESC", []int64{3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, "GET", "/api/v0/users?sort="+tt.sort, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, ids(decodeUsers(t, w)))
		})
	}
}

func TestListUsers_BadSort(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/users?sort=Nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Nope")

	w = do(t, r, "GET", "/api/v0/users?sort=Name:sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsers_Filters(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/users?company_id=1&sort=ID:desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3, 1}, ids(decodeUsers(t, w)))

	w = do(t, r, "GET", "/api/v0/users?name=a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2}, ids(decodeUsers(t, w)))

	w = do(t, r, "GET", "/api/v0/users?company_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsers_Include(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/users?include=Company&sort=ID", nil)
	require.Equal(t, http.StatusOK, w.Code)
	users := decodeUsers(t, w)
	require.Len(t, users, 3)
	require.NotNil(t, users[0].Company)
	assert.Equal(t, "Acme", users[0].Company.Name)
	assert.Equal(t, "Globex", users[1].Company.Name)

	w = do(t, r, "GET", "/api/v0/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, u := range decodeUsers(t, w) {
		assert.Nil(t, u.Company)
	}

	w = do(t, r, "GET", "/api/v0/users?include=Employer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCountUsers(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/users/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp CountResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)

	w = do(t, r, "GET", "/api/v0/users/count?company_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
}

func TestGetUser(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/users/1?include=Company", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&user))
	assert.Equal(t, "b", user.Name)
	require.NotNil(t, user.Company)
	assert.Equal(t, int64(1), user.Company.ID)
	assert.Equal(t, "Acme", user.Company.Name)
}

func TestGetUser_NotFound(t *testing.T) {
	r := setupTestAPI(t)
	w := do(t, r, "GET", "/api/v0/users/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUser_InvalidID(t *testing.T) {
	r := setupTestAPI(t)
	for _, id := range []string{"invalid", "0", "-4"} {
		w := do(t, r, "GET", "/api/v0/users/"+id, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestCreateUser(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "POST", "/api/v0/users", CreateUserRequest{ID: 10, Name: "zed", Email: "zed@example.com", CompanyID: ptr(2)})
	require.Equal(t, http.StatusCreated, w.Code)
	var created UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, int64(10), created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	w = do(t, r, "GET", "/api/v0/users/10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched UserResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fetched))
	assert.Equal(t, "zed", fetched.Name)
	assert.Equal(t, ptr(2), fetched.CompanyID)
}

func TestCreateUser_Duplicate(t *testing.T) {
	r := setupTestAPI(t)
	w := do(t, r, "POST", "/api/v0/users", CreateUserRequest{ID: 1, Name: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateUser_Invalid(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "POST", "/api/v0/users", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid JSON")

	w = do(t, r, "POST", "/api/v0/users", CreateUserRequest{ID: 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, "POST", "/api/v0/users", CreateUserRequest{Name: "no id"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateUser(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "PUT", "/api/v0/users/2", CreateUserRequest{Name: "aa", Email: "aa@example.com", CompanyID: ptr(1)})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, "GET", "/api/v0/users?company_id=1&sort=Name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2, 1, 3}, ids(decodeUsers(t, w)))
}

func TestUpdateUser_Errors(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "PUT", "/api/v0/users/99999", CreateUserRequest{Name: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, "PUT", "/api/v0/users/1", CreateUserRequest{ID: 2, Name: "mismatch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, "PUT", "/api/v0/users/1", CreateUserRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, "PUT", "/api/v0/users/1", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUser(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "DELETE", "/api/v0/users/3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, "GET", "/api/v0/users/3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, "DELETE", "/api/v0/users/3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, "DELETE", "/api/v0/users/invalid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCompanies(t *testing.T) {
	r := setupTestAPI(t)

	w := do(t, r, "GET", "/api/v0/companies?include=City,Users&sort=Name:desc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var companies []CompanyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&companies))
	require.Len(t, companies, 2)
	assert.Equal(t, "Globex", companies[0].Name)
	assert.Empty(t, companies[0].City)
	assert.Equal(t, "Acme", companies[1].Name)
	assert.Equal(t, "Springfield", companies[1].City)
	assert.ElementsMatch(t, []int64{1, 3}, companies[1].Users)
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupTestAPI(t)

	do(t, r, "GET", "/api/v0/users", nil)
	w := do(t, r, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "genrepo_queries_total"))
	assert.True(t, strings.Contains(body, "genrepo_http_requests_total"))
}

func TestAPI_SQLiteBackend(t *testing.T) {
	db, cleanup := testutil.SetupTestDBWithMigrations(t, "TestAPI_SQLiteBackend")
	defer cleanup()

	b := sqlite.New(db, nil)
	seed(t, b)
	r := NewAPI(b, nil).Router()

	w := do(t, r, "GET", "/api/v0/users?sort=Name:desc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3, 1, 2}, ids(decodeUsers(t, w)))

	w = do(t, r, "POST", "/api/v0/users", CreateUserRequest{ID: 4, Name: "d"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, "POST", "/api/v0/users", CreateUserRequest{ID: 4, Name: "d"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, "DELETE", "/api/v0/users/4", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, "GET", "/api/v0/users/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp CountResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}
