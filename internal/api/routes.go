package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/birthdays", func(r chi.Router) {
			r.Get("/upcoming", h.Upcoming)
			r.Get("/on/{date}", h.BirthdaysOn)
			r.Get("/this-month", h.BirthdaysThisMonth)
			r.Get("/by-age", h.BirthdaysByAge)
		})
		r.Get("/intents/{date}", h.ListIntents)
		r.Post("/jobs/{name}/run", h.RunJob)
		r.Post("/dispatch", h.Dispatch)

		r.Route("/wishes", func(r chi.Router) {
			r.Post("/", h.CreateWish)
			r.Get("/{id}", h.GetWish)
			r.Post("/{id}/schedule", h.ScheduleWish)
			r.Post("/{id}/reschedule", h.RescheduleWish)
			r.Post("/{id}/send", h.SendWish)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.CreateGroup)
			r.Post("/join", h.JoinGroup)
			r.Get("/{id}/contributions", h.ListContributions)
			r.Post("/{id}/contributions", h.AddContribution)
		})

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/chat", h.Chat)
			r.Get("/suggestions", h.Suggestions)
			r.Get("/gifts", h.GiftIdeas)
		})
	})

	return r
}
