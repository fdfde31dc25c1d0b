package permissionset

import (
	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type PermissionSetApi struct {
	controller *PermissionSetController
	config     *config.Config
	checker    middleware.CapabilityChecker
}

func NewPermissionSetApi(controller *PermissionSetController, cfg *config.Config, checker middleware.CapabilityChecker) *PermissionSetApi {
	return &PermissionSetApi{
		controller: controller,
		config:     cfg,
		checker:    checker,
	}
}

// Setup registers permission set routes
func (h *PermissionSetApi) Setup(app *fiber.App) {
	sets := app.Group("/api/permission-sets", middleware.AuthMiddleware(h.config.SkipAuth))

	view := middleware.RequireCapability(h.checker, CapabilityPermissionSetsView, h.config.SkipAuth)
	edit := middleware.RequireCapability(h.checker, CapabilityPermissionSetsEdit, h.config.SkipAuth)

	sets.Get("/", view, h.controller.ListPermissionSets)
	sets.Get("/export", view, h.controller.ExportPermissionSets)
	sets.Get("/:id", view, h.controller.GetPermissionSet)
	sets.Post("/", edit, h.controller.CreatePermissionSet)
	sets.Put("/", edit, h.controller.UpdatePermissionSet)
	sets.Delete("/", edit, h.controller.DeletePermissionSet)
}
