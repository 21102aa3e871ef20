package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/metrics"
	"github.com/jbweber/homelab/genrepo/internal/repository"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

// API serves the repositories over HTTP. Every request works in its own
// session on the shared backend.
type API struct {
	backend store.Backend
	logger  *slog.Logger
}

// NewAPI creates a new API over backend
func NewAPI(backend store.Backend, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{backend: backend, logger: logger}
}

// model opens the per-request unit of work.
func (a *API) model(r *http.Request) *domain.Model {
	sess := store.NewSession(a.backend,
		store.WithLogger(a.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))),
		store.WithObserver(metrics.Observer{}),
	)
	return domain.NewModel(sess)
}

func (a *API) users(r *http.Request) repository.UserRepository {
	return repository.NewUserRepository(a.model(r))
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v0/users", func(r chi.Router) {
		r.Get("/", a.listUsersHandler)
		r.Post("/", a.createUserHandler)
		r.Get("/count", a.countUsersHandler)
		r.Get("/{id}", a.getUserHandler)
		r.Put("/{id}", a.updateUserHandler)
		r.Delete("/{id}", a.deleteUserHandler)
	})

	r.Route("/api/v0/companies", func(r chi.Router) {
		r.Get("/", a.listCompaniesHandler)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "genrepo service is running!"); err != nil {
			a.logger.Warn("failed to write response", slog.Any("error", err))
		}
	})
}

// Router builds the service router with the standard middleware stack.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	a.RegisterRoutes(r)
	return r
}
