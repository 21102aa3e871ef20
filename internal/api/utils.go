package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/repository"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeRepoError maps repository and query errors to HTTP statuses.
func (a *API) writeRepoError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicate):
		a.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrConcurrency):
		a.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInvalidEntity),
		errors.Is(err, repository.ErrKeyModified),
		errors.Is(err, query.ErrFieldNotFound),
		errors.Is(err, query.ErrInvalidIncludeSpec),
		errors.Is(err, query.ErrInvalidDirection):
		a.writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		a.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// listOptions translates the sort and include query parameters.
func listOptions(r *http.Request) ([]repository.Option, error) {
	var opts []repository.Option

	spec, err := query.ParseSortSpec(r.URL.Query().Get("sort"))
	if err != nil {
		return nil, err
	}
	if len(spec) > 0 {
		opts = append(opts, repository.WithSort(spec...))
	}

	if inc := r.URL.Query().Get("include"); inc != "" {
		var paths []string
		for _, p := range strings.Split(inc, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		opts = append(opts, repository.WithInclude(paths...))
	}
	return opts, nil
}
