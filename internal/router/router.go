package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/FACorreiaa/go-identity-service/docs"

	appLogger "github.com/FACorreiaa/go-identity-service/app/logger"
	appMiddleware "github.com/FACorreiaa/go-identity-service/app/middleware"
	"github.com/FACorreiaa/go-identity-service/internal/api/auth"
	"github.com/FACorreiaa/go-identity-service/internal/api/user"
	"github.com/FACorreiaa/go-identity-service/internal/token"
	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler    *auth.AuthHandler
	UserHandler    *user.HandlerImpl
	Tokens         token.Verifier
	Logger         *slog.Logger
	AllowedOrigins []string
	ServiceName    string
	RequestTimeout time.Duration
}

// SetupRouter builds the full HTTP surface including the server-wide middleware.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.ServiceName != "" {
		r.Use(appMiddleware.Tracing(cfg.ServiceName))
	}
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Public account routes
	r.Group(func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Get("/verify-email", cfg.AuthHandler.VerifyEmail)
		r.Post("/verification-link", cfg.AuthHandler.ResendVerification)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/reset-password", cfg.AuthHandler.RequestPasswordReset)
		r.Post("/reset-password/{token}", cfg.AuthHandler.ResetPassword)
	})

	// Session routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.Logger, cfg.Tokens))

		r.Get("/profile", cfg.UserHandler.GetProfile)
		r.Put("/profile", cfg.UserHandler.UpdateProfile)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.ListUsers)
			r.Get("/{id}", cfg.UserHandler.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authorize(types.RoleAdmin))
				r.Put("/{id}", cfg.UserHandler.UpdateUser)
				r.Delete("/{id}", cfg.UserHandler.DeleteUser)
			})
		})
	})

	return r
}
