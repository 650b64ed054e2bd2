package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the HTTP routes over h. gatherer backs /metrics; nil
// uses the default registry.
func NewRouter(h *EventHandler, gatherer prometheus.Gatherer, logger *logrus.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/upcoming", h.UpcomingEvents)
		r.Get("/{id}", h.GetEvent)
		r.Delete("/{id}", h.DeleteEvent)
		r.Get("/{id}/summary", h.DescribeEvent)
		r.Post("/{id}/cancel", h.CancelEvent)
		r.Post("/{id}/participants", h.Enroll)
		r.Delete("/{id}/participants/{pid}", h.Withdraw)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.RegisterUser)
	})

	r.Get("/stats", h.Stats)
	r.Get("/notifications", h.Notifications)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/save", h.Save)
		r.Post("/load", h.Load)
		r.Post("/restore", h.Restore)
		r.Post("/export", h.Export)
		r.Post("/demo", h.ReloadDemo)
	})

	return r
}
