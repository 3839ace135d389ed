// Package router assembles the HTTP surface: the public intake endpoint and
// the JWT-protected admin lanes for review, reroutes, analytics, and policy.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadgate-ai/leadgate/internal/http/handlers"
	httpmiddleware "github.com/leadgate-ai/leadgate/internal/http/middleware"
	"github.com/leadgate-ai/leadgate/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger    *logging.Logger
	Intake    *handlers.IntakeHandler
	Review    *handlers.ReviewHandler
	Agreement *handlers.AgreementHandler
	Policy    *handlers.PolicyHandler

	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// IntakeRatePerSecond bounds public submissions per IP; zero disables
	// the limiter.
	IntakeRatePerSecond float64
	IntakeBurst         int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (intake, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Intake != nil {
			public.Route("/leads", func(r chi.Router) {
				if cfg.IntakeRatePerSecond > 0 {
					burst := cfg.IntakeBurst
					if burst < 1 {
						burst = 5
					}
					r.With(httpmiddleware.RateLimit(cfg.IntakeRatePerSecond, burst)).Post("/", cfg.Intake.SubmitLead)
				} else {
					r.Post("/", cfg.Intake.SubmitLead)
				}
				r.Get("/{leadID}", cfg.Intake.GetLead)
			})
		}
	})

	// Admin routes (protected by HMAC JWT)
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.Review != nil {
			admin.Get("/review", cfg.Review.ReviewQueue)
			admin.Get("/classify", cfg.Review.ClassifyQueue)
			admin.Route("/leads/{leadID}", func(r chi.Router) {
				r.Post("/approve", cfg.Review.Approve)
				r.Post("/override", cfg.Review.Override)
				r.Post("/classify", cfg.Review.Classify)
				r.Post("/reroute", cfg.Review.Reroute)
			})
		}
		if cfg.Agreement != nil {
			admin.Get("/analytics/agreement", cfg.Agreement.GetAgreement)
		}
		if cfg.Policy != nil {
			admin.Get("/policy", cfg.Policy.GetPolicy)
			admin.Put("/policy", cfg.Policy.UpdatePolicy)
		}
	})

	return r
}
