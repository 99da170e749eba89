package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"auxilium-api/internal/config"
	"auxilium-api/internal/handler"
	"auxilium-api/internal/metrics"
	"auxilium-api/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Case   *handler.CaseHandler
	User   *handler.UserHandler
	Health *handler.HealthHandler
}

func New(
	cfg *config.Config,
	registry *metrics.Registry,
	authMiddleware *middleware.AuthMiddleware,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.ClientIP(cfg.TrustProxyHeaders))
	r.Use(middleware.Logging)
	r.Use(registry.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", registry.Handler())

	r.Route("/api/v3", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/authentication", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
		})

		api.Route("/cases", func(cases chi.Router) {
			cases.Use(authMiddleware.RequireAuth)
			cases.Get("/mine", h.Case.Mine)
			cases.Get("/assigned", h.Case.Assigned)
			cases.Get("/all", h.Case.All)
			cases.Get("/{case_id}", h.Case.Get)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuth)
			users.Get("/me", h.User.Me)
			users.With(authMiddleware.RequireAdmin).Patch("/{id}", h.User.Update)
		})
	})

	return r
}
