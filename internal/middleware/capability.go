package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CapabilityChecker answers whether a user's seat in a tenant grants a capability column.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, tenantID, userID, capability string) (bool, error)
}

// RequireCapability is the single authorization guard for tenant-scoped routes. It runs
// after AuthMiddleware and rejects requests whose seat does not grant capability.
func RequireCapability(checker CapabilityChecker, capability string, skipAuth bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipAuth {
			return c.Next()
		}

		claims, ok := ClaimsFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		if claims.TenantID == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: no tenant in token",
			})
		}

		allowed, err := checker.HasCapability(c.UserContext(), claims.TenantID, claims.UserID, capability)
		if err != nil {
			zap.L().Error("capability check failed",
				zap.String("tenant_id", claims.TenantID),
				zap.String("capability", capability),
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal Server Error",
			})
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Insufficient permissions",
			})
		}

		return c.Next()
	}
}
