package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "fleet-orchestrator/docs"
)

// Routes builds the API router. metricsHandler may be nil when metrics are disabled.
func Routes(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// after RequestID so the id is in the context
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.ListJobs)
		r.Post("/", h.QueryJobs)
		r.Put("/", h.CreateJob)
		r.Get("/{id}", h.GetJob)
		r.Delete("/{id}", h.DeleteJob)
		r.Get("/{id}/cancel", h.CancelJob)
		r.Get("/{id}/restart", h.RestartJob)
		r.Put("/{id}/configuration", h.UpdateJobConfiguration)
	})

	r.Route("/workers", func(r chi.Router) {
		r.Get("/", h.ListWorkers)
		r.Get("/{id}", h.GetWorker)
		r.Delete("/{id}", h.DeleteWorker)
	})

	r.Post("/heartbeat", h.Heartbeat)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
