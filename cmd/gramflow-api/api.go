// Package main provides the GramFlow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/registry"
	"github.com/gramflow/gramflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	limiter     *ratelimit.Limiter
	registry    *registry.Registry
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	limiter *ratelimit.Limiter,
	reg *registry.Registry,
) *API {
	return &API{
		logger:      logger,
		persistence: persist,
		limiter:     limiter,
		registry:    reg,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.logger, a.persistence, a.limiter, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("GramFlow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.GetExecutions)
	w.Get("/:id/limits/stats", handlers.GetLimiterStats)
	w.Get("/:id/limits/history", handlers.GetLimiterHistory)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Post("/executions/:id/cancel", handlers.CancelExecution)

	app.Get("/nodes", handlers.GetNodeKinds)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
