package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/orgtask/orgtask/internal/observability"
	"github.com/orgtask/orgtask/internal/roles"
	"github.com/orgtask/orgtask/internal/tasks"
	"github.com/orgtask/orgtask/internal/users"
	"github.com/orgtask/orgtask/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	RolesHandler *roles.Handler
	UsersHandler *users.Handler
	TasksHandler *tasks.Handler
	JobsHandler  *jobs.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Orgtask defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.RolesHandler != nil {
			api.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			api.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.TasksHandler != nil {
			api.Route("/tasks", params.TasksHandler.MountTaskRoutes)
			api.Route("/task-workflows", params.TasksHandler.MountWorkflowRoutes)
		}
		if params.JobsHandler != nil {
			api.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
