package seat

import (
	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

const (
	CapabilityUsersView = "account_users_view"
	CapabilityUsersEdit = "account_users_edit"
)

type SeatApi struct {
	controller *SeatController
	config     *config.Config
	checker    middleware.CapabilityChecker
}

func NewSeatApi(controller *SeatController, cfg *config.Config, checker middleware.CapabilityChecker) *SeatApi {
	return &SeatApi{
		controller: controller,
		config:     cfg,
		checker:    checker,
	}
}

func (h *SeatApi) Setup(app *fiber.App) {
	seats := app.Group("/api/seats", middleware.AuthMiddleware(h.config.SkipAuth))

	view := middleware.RequireCapability(h.checker, CapabilityUsersView, h.config.SkipAuth)
	edit := middleware.RequireCapability(h.checker, CapabilityUsersEdit, h.config.SkipAuth)

	seats.Post("/", edit, h.controller.CreateSeat)
	seats.Get("/:id/permissions", view, h.controller.GetEffectivePermissions)
	seats.Put("/:id/permission-set", edit, h.controller.AssignPermissionSet)
}
