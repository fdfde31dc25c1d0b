package permissionset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"twol-crm/internal/common/errs"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/common/validation"
	"twol-crm/pkg/apierror"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PermissionSetController struct {
	Service PermissionSetService
	Logger  *zap.Logger
}

func NewPermissionSetController(service PermissionSetService, logger *zap.Logger) *PermissionSetController {
	return &PermissionSetController{Service: service, Logger: logger}
}

// CreatePermissionSet godoc
// @Summary      Create a permission set
// @Description  Create a set from the Super Admin templates or a nested permission payload
// @Tags         permission-sets
// @Accept       json
// @Produce      json
// @Param        body  body      CreatePermissionSetRequest  true  "Permission set"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {string}  string
// @Failure      403   {string}  string
// @Failure      500   {string}  string
// @Router       /permission-sets [post]
func (ctrl *PermissionSetController) CreatePermissionSet(c *fiber.Ctx) error {
	var req CreatePermissionSetRequest
	if err := c.BodyParser(&req); err != nil {
		return ctrl.text(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return ctrl.text(c, err)
	}

	tpl, err := templateFrom(req.SetAsSuperAdmin, req.SetAsSuperAdminWithSalesPro, req.PermissionDataSet)
	if err != nil {
		return ctrl.text(c, err)
	}

	id, err := ctrl.Service.CreatePermissionSet(c.UserContext(), tenantOf(c), req.Name, tpl)
	if err != nil {
		return ctrl.text(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      id,
	})
}

// UpdatePermissionSet godoc
// @Summary      Update a permission set
// @Description  Replace the name and every permission of an editable set
// @Tags         permission-sets
// @Accept       json
// @Produce      json
// @Param        body  body      UpdatePermissionSetRequest  true  "Permission set"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {string}  string
// @Failure      403   {string}  string
// @Failure      404   {string}  string
// @Failure      500   {string}  string
// @Router       /permission-sets [put]
func (ctrl *PermissionSetController) UpdatePermissionSet(c *fiber.Ctx) error {
	var req UpdatePermissionSetRequest
	if err := c.BodyParser(&req); err != nil {
		return ctrl.text(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return ctrl.text(c, err)
	}

	tpl, err := templateFrom(req.SetAsSuperAdmin, req.SetAsSuperAdminWithSalesPro, req.PermissionDataSet)
	if err != nil {
		return ctrl.text(c, err)
	}

	if err := ctrl.Service.UpdatePermissionSet(c.UserContext(), tenantOf(c), req.ID, req.Name, tpl); err != nil {
		return ctrl.text(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
	})
}

// DeletePermissionSet godoc
// @Summary      Delete a permission set
// @Description  Moves every seat using the set onto a private copy, then deletes it
// @Tags         permission-sets
// @Accept       json
// @Param        body  body      DeletePermissionSetRequest  true  "Permission set id"
// @Success      200
// @Failure      400   {string}  string
// @Failure      403   {string}  string
// @Failure      404   {string}  string
// @Failure      500   {string}  string
// @Router       /permission-sets [delete]
func (ctrl *PermissionSetController) DeletePermissionSet(c *fiber.Ctx) error {
	var req DeletePermissionSetRequest
	if err := c.BodyParser(&req); err != nil {
		return ctrl.text(c, fmt.Errorf("%w: invalid request body", errs.ErrValidation))
	}
	if err := validation.Struct(req); err != nil {
		return ctrl.text(c, err)
	}

	if err := ctrl.Service.DeletePermissionSet(c.UserContext(), tenantOf(c), req.ID); err != nil {
		return ctrl.text(c, err)
	}

	c.Status(fiber.StatusOK)
	return nil
}

// ListPermissionSets godoc
// @Summary      List permission sets
// @Tags         permission-sets
// @Produce      json
// @Param        toTake              query     int     false  "Page size"
// @Param        toSkip              query     int     false  "Offset"
// @Param        searchTerm          query     string  false  "Name contains"
// @Param        toOrderBy           query     string  false  "name, createdAt, updatedAt or predefined"
// @Param        toOrderByStartWith  query     string  false  "asc or desc"
// @Param        scope               query     string  false  "all, shared or private"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /permission-sets [get]
func (ctrl *PermissionSetController) ListPermissionSets(c *fiber.Ctx) error {
	var q ListQuery
	if err := c.QueryParser(&q); err != nil {
		return apierror.JSON(c, fmt.Errorf("%w: invalid query", errs.ErrValidation))
	}
	if err := validation.Struct(q); err != nil {
		return apierror.JSON(c, err)
	}

	page, err := ctrl.Service.ListPermissionSets(c.UserContext(), tenantOf(c), q)
	if err != nil {
		return ctrl.json(c, err)
	}
	return c.JSON(page)
}

// GetPermissionSet godoc
// @Summary      Get a permission set
// @Tags         permission-sets
// @Produce      json
// @Param        id   path      string  true  "Permission set ID"
// @Success      200  {object}  View
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /permission-sets/{id} [get]
func (ctrl *PermissionSetController) GetPermissionSet(c *fiber.Ctx) error {
	set, err := ctrl.Service.GetPermissionSet(c.UserContext(), tenantOf(c), c.Params("id"))
	if err != nil {
		return ctrl.json(c, err)
	}
	return c.JSON(NewView(DefaultSchema(), set))
}

// ExportPermissionSets godoc
// @Summary      Export permission sets
// @Description  XLSX with one row per set and one column per permission
// @Tags         permission-sets
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}  file
// @Router       /permission-sets/export [get]
func (ctrl *PermissionSetController) ExportPermissionSets(c *fiber.Ctx) error {
	data, err := ctrl.Service.ExportPermissionSets(c.UserContext(), tenantOf(c))
	if err != nil {
		return ctrl.json(c, err)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Attachment("permission-sets.xlsx")
	return c.Send(data)
}

func (ctrl *PermissionSetController) text(c *fiber.Ctx, err error) error {
	ctrl.logServerError(c, err)
	return apierror.Text(c, err)
}

func (ctrl *PermissionSetController) json(c *fiber.Ctx, err error) error {
	ctrl.logServerError(c, err)
	return apierror.JSON(c, err)
}

func (ctrl *PermissionSetController) logServerError(c *fiber.Ctx, err error) {
	if apierror.Status(err) < fiber.StatusInternalServerError {
		return
	}
	ctrl.Logger.Error("permission set request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("tenant_id", tenantOf(c)),
		zap.Error(err))
}

func tenantOf(c *fiber.Ctx) string {
	return common_models.TenantFromContext(c.UserContext())
}

// templateFrom picks the template from the request flags. withSalesPro only modifies the
// Super Admin override. Without setAsSuperAdmin the nested payload is required and must be an
// object.
func templateFrom(superAdmin, withSalesPro bool, raw json.RawMessage) (Template, error) {
	if superAdmin {
		if withSalesPro {
			return SuperAdminWithSalesPro(), nil
		}
		return SuperAdmin(), nil
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Template{}, fmt.Errorf("%w: permissionDataSet is required", errs.ErrValidation)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var nested Nested
	if err := dec.Decode(&nested); err != nil {
		return Template{}, fmt.Errorf("%w: permissionDataSet must be an object", errs.ErrValidation)
	}
	return Custom(nested), nil
}
