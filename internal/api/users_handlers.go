package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/repository"
)

// CreateUserRequest is the body of POST and PUT /api/v0/users
type CreateUserRequest struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	CompanyID *int64 `json:"company_id,omitempty"`
}

// CompanyResponse is a company as returned by the API
type CompanyResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	CityID *int64  `json:"city_id,omitempty"`
	City   string  `json:"city,omitempty"`
	Users  []int64 `json:"users,omitempty"`
}

// UserResponse is a user as returned by the API
type UserResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email,omitempty"`
	CompanyID *int64           `json:"company_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Company   *CompanyResponse `json:"company,omitempty"`
}

// CountResponse is the body of GET /api/v0/users/count
type CountResponse struct {
	Count int `json:"count"`
}

func toCompanyResponse(c *domain.Company) *CompanyResponse {
	if c == nil {
		return nil
	}
	resp := &CompanyResponse{ID: c.ID, Name: c.Name, CityID: c.CityID}
	if c.City != nil {
		resp.City = c.City.Name
	}
	for _, u := range c.Users {
		resp.Users = append(resp.Users, u.ID)
	}
	return resp
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
		Company:   toCompanyResponse(u.Company),
	}
}

// userFilter builds the predicate for the name and company_id parameters.
func userFilter(r *http.Request) (query.Predicate[domain.User], error) {
	var preds []query.Predicate[domain.User]

	if name := r.URL.Query().Get("name"); name != "" {
		preds = append(preds, func(u *domain.User) bool { return u.Name == name })
	}
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		companyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		preds = append(preds, func(u *domain.User) bool {
			return u.CompanyID != nil && *u.CompanyID == companyID
		})
	}

	if len(preds) == 0 {
		return nil, nil
	}
	return query.And(preds...), nil
}

// listUsersHandler handles GET /api/v0/users.
//
// Query parameters: sort (e.g. "Name:desc,ID"), name, company_id, include.
func (a *API) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	pred, err := userFilter(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid company_id")
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	users, err := a.users(r).SelectByCondition(r.Context(), pred, opts...)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	response := make([]UserResponse, len(users))
	for i, u := range users {
		response[i] = toUserResponse(u)
	}
	a.writeJSON(w, http.StatusOK, response)
}

// countUsersHandler handles GET /api/v0/users/count.
func (a *API) countUsersHandler(w http.ResponseWriter, r *http.Request) {
	pred, err := userFilter(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid company_id")
		return
	}

	n, err := a.users(r).Count(r.Context(), pred)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// getUserHandler handles GET /api/v0/users/{id}.
func (a *API) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	user, err := a.users(r).FindByID(r.Context(), id, opts...)
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// createUserHandler handles POST /api/v0/users.
//
// Returns 201 with the stored user, 400 for invalid input and 409 when the
// ID is already taken.
func (a *API) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user := &domain.User{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		CompanyID: req.CompanyID,
		CreatedAt: time.Now().UTC(),
	}

	repo := a.users(r)
	if err := repo.Add(r.Context(), user); err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	if _, err := repo.SaveChanges(r.Context()); err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// updateUserHandler handles PUT /api/v0/users/{id}.
//
// The user is loaded tracked, mutated in place and persisted.
func (a *API) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ID != 0 && req.ID != id {
		a.writeError(w, http.StatusBadRequest, "ID in body does not match path")
		return
	}

	repo := a.users(r)
	user, err := repo.FindByID(r.Context(), id, repository.WithTracking(query.TrackAll))
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}

	user.Name = req.Name
	user.Email = req.Email
	user.CompanyID = req.CompanyID
	if err := user.Validate(); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := repo.SaveChanges(r.Context()); err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// deleteUserHandler handles DELETE /api/v0/users/{id}.
//
// Deleting a missing user also returns 204.
func (a *API) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	repo := a.users(r)
	user, err := repo.GetByID(r.Context(), id, repository.WithTracking(query.TrackAll))
	if err != nil {
		a.writeRepoError(w, r, err)
		return
	}
	if user != nil {
		if err := repo.PhysicalDelete(user); err != nil {
			a.writeRepoError(w, r, err)
			return
		}
		if _, err := repo.SaveChanges(r.Context()); err != nil {
			a.writeRepoError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
