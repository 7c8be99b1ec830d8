package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-fintrack/internal/config"
	"go-fintrack/internal/fakeapi"
	"go-fintrack/internal/middleware"
)

// New builds the fake API's route table under /api, the same prefix the
// client's API_BASE_URL points at.
func New(cfg *config.Config, api *fakeapi.API) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, "/api/auth")
	authMiddleware := middleware.NewAuthMiddleware(api.Tokens)

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.ServerWriteTimeout))

		r.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", api.Auth.Register)
			auth.Post("/verify-email", api.Auth.VerifyEmail)
			auth.Post("/login", api.Auth.Login)
			auth.Post("/google", api.Auth.Google)
			auth.Post("/resend-otp", api.Auth.ResendOTP)
			auth.Post("/forgot-password", api.Auth.ForgotPassword)
			auth.Post("/verify-reset-token", api.Auth.VerifyResetToken)
			auth.Post("/reset-password", api.Auth.ResetPassword)
			auth.With(authMiddleware.RequireRefresh).Post("/refresh", api.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Get("/profile", api.Auth.Profile)
			auth.With(authMiddleware.RequireAuth).Post("/logout", api.Auth.Logout)
		})

		r.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			protected.Get("/expenses", api.Expense.List)
			protected.Post("/expenses", api.Expense.Create)
			protected.Put("/expenses/{id}", api.Expense.Update)
			protected.Delete("/expenses/{id}", api.Expense.Delete)
			protected.Get("/expenses/categories", api.Expense.Categories)
			protected.Post("/expenses/categories", api.Expense.CreateCategory)
		})

		if cfg.FakeExposeOutbox {
			r.Get("/dev/outbox", api.Dev.Outbox)
		}
	})

	return r
}
