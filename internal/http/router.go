package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cyberwhale/internal/config"
)

// Handlers bundles the route handlers the router mounts. OAuth and Metrics
// are optional; their routes are skipped when nil.
type Handlers struct {
	Auth       *AuthHandler
	OAuth      *OAuthHandler
	Challenges *ChallengeHandler
	Knowledge  *KnowledgeHandler
	Products   *ProductHandler
	Assistant  *AssistantHandler
	Metrics    http.Handler
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, h Handlers, requestMetrics RequestMetrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger, requestMetrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	if !cfg.GoogleLoginEnabled() {
		logger.Warn("Google social login disabled; missing client credentials")
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/state", h.Auth.State)
			r.Post("/logout", h.Auth.Logout)

			// Brute-force-prone endpoints share one per-IP budget.
			r.Group(func(r chi.Router) {
				r.Use(newRateLimitMiddleware(20, 10))
				r.Post("/login", h.Auth.Login)
				r.Post("/register", h.Auth.Register)
				r.Post("/reset-password", h.Auth.ResetPassword)
				r.Post("/update-password", h.Auth.UpdatePassword)
				r.Post("/verify-otp", h.Auth.VerifyOTP)
			})

			if h.OAuth != nil {
				r.Get("/google", h.OAuth.InitiateGoogle)
				r.Get("/google/callback", h.OAuth.CallbackGoogle)
			}

			r.Group(func(r chi.Router) {
				r.Use(newAuthMiddleware(h.Auth))
				r.Patch("/profile", h.Auth.UpdateProfile)
			})
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", h.Challenges.List)
			r.Get("/{id}", h.Challenges.Get)

			r.Group(func(r chi.Router) {
				r.Use(newAuthMiddleware(h.Auth))
				r.Post("/", h.Challenges.Create)
				r.Post("/{id}/submit", h.Challenges.SubmitFlag)
				r.Post("/import", h.Challenges.ImportCSV)
				r.Get("/export", h.Challenges.ExportCSV)
			})
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", h.Knowledge.List)
			r.Get("/{id}", h.Knowledge.Get)

			r.Group(func(r chi.Router) {
				r.Use(newAuthMiddleware(h.Auth))
				r.Post("/", h.Knowledge.Create)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(newAuthMiddleware(h.Auth))
			r.Post("/assistant/chat", h.Assistant.Chat)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
