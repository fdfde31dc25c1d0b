package system

import (
	"context"

	"twol-crm/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthChecker is a dependency that can report its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthApi struct {
	checks map[string]HealthChecker
	logger *zap.Logger
}

func NewHealthApi(postgres *database.Postgres, mongodb *database.MongodbDB, logger *zap.Logger) *HealthApi {
	return newHealthApi(map[string]HealthChecker{
		"postgres": postgres,
		"mongodb":  mongodb,
	}, logger)
}

func newHealthApi(checks map[string]HealthChecker, logger *zap.Logger) *HealthApi {
	return &HealthApi{checks: checks, logger: logger}
}

// Setup registers health and metrics routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Reports the state of the server and its storage
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	status := fiber.StatusOK
	report := fiber.Map{"status": "ok"}

	for name, check := range h.checks {
		if err := check.HealthCheck(c.UserContext()); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			report[name] = "down"
			report["status"] = "degraded"
			status = fiber.StatusServiceUnavailable
			continue
		}
		report[name] = "up"
	}

	return c.Status(status).JSON(report)
}
