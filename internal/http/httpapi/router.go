package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"genserver/internal/http/handlers"
	"genserver/internal/middleware"
)

// Options tunes router-level middleware.
type Options struct {
	RateLimitPerMin int
	Logger          zerolog.Logger
}

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
	)
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-User-ID"},
	}).Handler)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	// The webhook is provider-facing and carries no user identity.
	r.Post("/v1/payments/webhook", app.PaymentsWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/v1/batches", func(r chi.Router) {
			r.Post("/", app.BatchesCreate)
			r.Get("/{id}", app.BatchesGet)
		})

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.JobsCreate)
			r.Get("/{id}", app.JobsGet)
		})

		r.Post("/v1/payments", app.PaymentsCreate)
		r.Get("/v1/payments/{id}/check", app.PaymentsCheck)
		r.Get("/v1/credits", app.CreditsGet)
	})

	return r
}
