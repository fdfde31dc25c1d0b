package organization

import (
	"fmt"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/common/validation"
	"twol-crm/pkg/apierror"

	"github.com/gofiber/fiber/v2"
)

type OrganizationController struct {
	Service OrganizationService
}

func NewOrganizationController(service OrganizationService) *OrganizationController {
	return &OrganizationController{Service: service}
}

// CreateOrganization godoc
// @Summary      Create an organization
// @Description  Onboards a tenant with its Account Owner permission set and the caller's seat
// @Tags         organizations
// @Accept       json
// @Produce      json
// @Param        body  body      CreateOrganizationRequest  true  "Organization"
// @Success      201   {object}  Onboarding
// @Failure      400   {object}  map[string]string
// @Router       /organizations [post]
func (ctrl *OrganizationController) CreateOrganization(c *fiber.Ctx) error {
	var req CreateOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.JSON(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return apierror.JSON(c, err)
	}

	result, err := ctrl.Service.Onboard(c.UserContext(), req.Name, common_models.ActorFromContext(c.UserContext()))
	if err != nil {
		return apierror.JSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetCurrentOrganization godoc
// @Summary      Current organization
// @Tags         organizations
// @Produce      json
// @Success      200  {object}  Organization
// @Failure      404  {object}  map[string]string
// @Router       /organizations/current [get]
func (ctrl *OrganizationController) GetCurrentOrganization(c *fiber.Ctx) error {
	org, err := ctrl.Service.GetOrganization(c.UserContext(), common_models.TenantFromContext(c.UserContext()))
	if err != nil {
		return apierror.JSON(c, err)
	}
	return c.JSON(org)
}
