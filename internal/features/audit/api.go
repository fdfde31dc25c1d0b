package audit

import (
	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
	checker    middleware.CapabilityChecker
}

func NewAuditApi(controller *AuditController, config *config.Config, checker middleware.CapabilityChecker) *AuditApi {
	return &AuditApi{
		controller: controller,
		config:     config,
		checker:    checker,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs", middleware.AuthMiddleware(h.config.SkipAuth))

	audit.Get("/", middleware.RequireCapability(h.checker, "account_audit_log_view", h.config.SkipAuth), h.controller.ListLogs)
}
