package http

import (
	"net/http"

	"github.com/api-yamdb/internal/config"
	"github.com/api-yamdb/internal/domain"
	"github.com/api-yamdb/internal/transport/http/handler"
	appmiddleware "github.com/api-yamdb/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(deps.AuthService)
	userH := handler.NewUserHandler(deps.UserService)

	// Public
	r.Get("/health-check/{action}", healthH.Ping)
	r.Post("/auth/signup", authH.SignUp)
	r.Post("/auth/token", authH.Token)

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Auth(deps.JWTProvider))

		r.Get("/users/me", userH.GetMe)
		r.Patch("/users/me", userH.UpdateMe)

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/users", userH.List)
			r.Get("/users/{username}", userH.Get)
			r.Patch("/users/{username}", userH.Update)
			r.Delete("/users/{username}", userH.Delete)
		})
	})

	return r
}
