package organization

import (
	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type OrganizationApi struct {
	controller *OrganizationController
	config     *config.Config
}

func NewOrganizationApi(controller *OrganizationController, config *config.Config) *OrganizationApi {
	return &OrganizationApi{
		controller: controller,
		config:     config,
	}
}

func (h *OrganizationApi) Setup(app *fiber.App) {
	orgs := app.Group("/api/organizations", middleware.AuthMiddleware(h.config.SkipAuth))

	orgs.Post("/", h.controller.CreateOrganization)
	orgs.Get("/current", h.controller.GetCurrentOrganization)
}
