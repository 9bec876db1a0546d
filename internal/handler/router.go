package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/middleware"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/response"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// RouterConfig carries the transport settings of the HTTP surface
type RouterConfig struct {
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter mounts the HTTP routes
func NewRouter(h *HTTPHandler, verifier middleware.TokenVerifier, cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, log, errors.NotFound("Route", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, log, errors.New(errors.ErrCodeValidation, "Method not allowed").WithStatus(http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", h.Health)

	r.Post("/user/register", h.Register)
	r.Post("/user/verify-otp", h.VerifyOTP)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier, log))

		r.Patch("/user/update-password", h.UpdatePassword)
		r.Patch("/user/change-password", h.ChangePassword)
		r.Get("/auth/profile", h.Profile)

		r.With(middleware.RequireRoles(log, string(repository.RoleAdmin), string(repository.RoleManager))).
			Get("/admin/users/{id}", h.GetUser)
	})

	return r
}
