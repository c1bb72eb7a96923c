package router

import (
	"net/http"

	"github.com/anonto42/alumni-connect/backend/internal/fetchers"
	"github.com/anonto42/alumni-connect/backend/internal/handlers"
	"github.com/anonto42/alumni-connect/backend/internal/middleware"
	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/anonto42/alumni-connect/backend/pkg/config"
	"github.com/anonto42/alumni-connect/backend/pkg/firebase"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/labstack/echo/v4"
)

var log = logging.NewLogger("router")

// Deps are the dependencies the routes are built from
type Deps struct {
	Config     *config.Config
	Alumni     repositories.AlumniRepository
	Verifier   firebase.TokenVerifier
	Sessions   *session.Manager
	Normalizer *fetchers.Normalizer
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Deps) {
	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(d.Sessions).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "alumni sync"})
	})

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	handlers.NewAuthHandler(d.Alumni, d.Verifier, d.Config.JWTSecret, d.Config.JWTTTL).RegisterAuthRoutes(authGroup)
	log.Debug("Auth routes configured.")

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.Authenticate(identifiers(d)...))
	log.WithField("mode", d.Config.AuthMode).Debug("Authentication middleware applied to /api/v1 group.")

	handlers.NewSessionHandler(d.Sessions, d.Normalizer).
		AllowOrigins(d.Config.AllowedOrigins...).
		RegisterSessionRoutes(api)
	handlers.NewActionHandler(d.Sessions).RegisterActionRoutes(api)
	handlers.NewProfileHandler(d.Alumni, d.Normalizer).RegisterProfileRoutes(api)

	log.Info("All routes configured.")
}

// identifiers picks the token checks for the configured auth mode
func identifiers(d Deps) []middleware.Identifier {
	var ids []middleware.Identifier
	if d.Config.AuthMode != "firebase" {
		ids = append(ids, middleware.JWTIdentifier(d.Config.JWTSecret))
	}
	if d.Config.AuthMode != "jwt" && d.Verifier != nil {
		ids = append(ids, middleware.FirebaseIdentifier(d.Verifier, d.Alumni))
	}
	return ids
}
