package system

import (
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct {
	hub *Hub
}

func NewDebugController(hub *Hub) *DebugController {
	return &DebugController{hub: hub}
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Echoes the caller's token claims and realtime subscriber count
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return fiber.ErrUnauthorized
	}

	return ctx.JSON(fiber.Map{
		"user_id":     claims.UserID,
		"tenant_id":   claims.TenantID,
		"subscribers": c.hub.Subscribers(claims.TenantID),
		"message":     "This is your current JWT token data",
	})
}
