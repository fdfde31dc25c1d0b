package seat

import (
	"fmt"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/common/validation"
	"twol-crm/pkg/apierror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SeatController struct {
	Service SeatService
	Logger  *zap.Logger
}

func NewSeatController(service SeatService, logger *zap.Logger) *SeatController {
	return &SeatController{Service: service, Logger: logger}
}

// CreateSeat godoc
// @Summary      Create a seat
// @Description  Give a user a seat bound to a permission set of the caller's tenant
// @Tags         seats
// @Accept       json
// @Produce      json
// @Param        body  body      CreateSeatRequest  true  "Seat"
// @Success      201   {object}  Seat
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /seats [post]
func (ctrl *SeatController) CreateSeat(c *fiber.Ctx) error {
	var req CreateSeatRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.JSON(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return apierror.JSON(c, err)
	}

	seat, err := ctrl.Service.CreateSeat(c.UserContext(), tenantOf(c), req.UserID, req.PermissionSetID)
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(seat)
}

// GetEffectivePermissions godoc
// @Summary      Effective permissions of a seat
// @Tags         seats
// @Produce      json
// @Param        id   path      string  true  "Seat ID"
// @Success      200  {object}  EffectivePermissions
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /seats/{id}/permissions [get]
func (ctrl *SeatController) GetEffectivePermissions(c *fiber.Ctx) error {
	perms, err := ctrl.Service.GetEffectivePermissions(c.UserContext(), tenantOf(c), c.Params("id"))
	if err != nil {
		return ctrl.fail(c, err)
	}
	return c.JSON(perms)
}

// AssignPermissionSet godoc
// @Summary      Assign a permission set to a seat
// @Tags         seats
// @Accept       json
// @Param        id    path      string                      true  "Seat ID"
// @Param        body  body      AssignPermissionSetRequest  true  "Permission set"
// @Success      200
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /seats/{id}/permission-set [put]
func (ctrl *SeatController) AssignPermissionSet(c *fiber.Ctx) error {
	var req AssignPermissionSetRequest
	if err := c.BodyParser(&req); err != nil {
		return apierror.JSON(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return apierror.JSON(c, err)
	}

	if err := ctrl.Service.AssignPermissionSet(c.UserContext(), tenantOf(c), c.Params("id"), req.PermissionSetID); err != nil {
		return ctrl.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (ctrl *SeatController) fail(c *fiber.Ctx, err error) error {
	if apierror.Status(err) >= fiber.StatusInternalServerError {
		ctrl.Logger.Error("seat request failed",
			zap.String("path", c.Path()),
			zap.String("tenant_id", tenantOf(c)),
			zap.Error(err))
	}
	return apierror.JSON(c, err)
}

func tenantOf(c *fiber.Ctx) string {
	return common_models.TenantFromContext(c.UserContext())
}
