package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/SanketsMane/Flowversal-sub007/pkg/persistence"
	"github.com/SanketsMane/Flowversal-sub007/pkg/runner"
	"github.com/SanketsMane/Flowversal-sub007/pkg/sweeper"
)

// NewApp builds the fiber application with all orchestrator routes mounted.
func NewApp(
	store persistence.Persistence,
	executionRunner *runner.Runner,
	approvalSweep *sweeper.ApprovalSweeper,
	breakpointSweep *sweeper.BreakpointSweeper,
) *fiber.App {
	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := NewAPIHandlers(store, executionRunner, approvalSweep, breakpointSweep, validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowversal Orchestrator API")
	})

	e := app.Group("/executions")
	e.Post("/run", handlers.RunExecution)
	e.Post("/resume-approval", handlers.ResumeApproval)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/breakpoints", handlers.CreateBreakpoint)
	e.Delete("/:id/breakpoints/:nodeId", handlers.DeleteBreakpoint)

	j := app.Group("/jobs")
	j.Post("/sweep-approvals", handlers.SweepApprovals)
	j.Post("/sweep-breakpoints", handlers.SweepBreakpoints)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)

	app.Get("/health", handlers.HealthCheck)

	return app
}
