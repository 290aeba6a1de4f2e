// Package routes defines the API routing configuration. It wires
// repositories, services and handlers together and applies middleware.
package routes

import (
	"afilia/internal/config"
	"afilia/internal/handlers"
	"afilia/internal/metrics"
	"afilia/internal/middleware"
	"afilia/internal/repositories"
	"afilia/internal/services/auth"
	"afilia/internal/services/membership"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	membershipRepo := repositories.NewMembershipRepository(db)
	userRepo := repositories.NewUserRepository(db)

	authService := auth.NewService(userRepo, config.GetEnv("JWT_SECRET", "afilia"))
	membershipService := membership.NewService(
		membershipRepo,
		repositories.CacheService,
		membership.Config{},
		metrics.New(),
	)

	authHandler := handlers.NewAuthHandler(authService)
	membershipHandler := handlers.NewMembershipHandler(membershipService)
	cardHandler := handlers.NewCardHandler(membershipService)

	app.Get("/health", handlers.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/refresh", authHandler.Refresh)

	protected := api.Group("/", middleware.Auth())

	memberships := protected.Group("/memberships")
	memberships.Get("/", membershipHandler.List)
	memberships.Get("/active", membershipHandler.ListActive)
	memberships.Get("/inactive", membershipHandler.ListInactive)
	memberships.Post("/", membershipHandler.Create)
	memberships.Post("/bank", membershipHandler.CreateBank)
	memberships.Post("/consolidate", membershipHandler.Consolidate)
	memberships.Get("/:id", membershipHandler.Get)
	memberships.Patch("/:id/status", membershipHandler.SetStatus)
	memberships.Delete("/:id", membershipHandler.Delete)

	memberships.Put("/:id/cards/:cardId", cardHandler.Update)
	memberships.Delete("/:id/cards/:cardId", cardHandler.Delete)

	protected.Post("/cards/expiry", cardHandler.CheckExpiry)
}
