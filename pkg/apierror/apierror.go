// Package apierror maps domain errors to HTTP responses.
package apierror

import (
	"errors"

	"twol-crm/internal/common/errs"

	"github.com/gofiber/fiber/v2"
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrSchemaMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotAuthorized):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Server errors are not echoed back.
func Message(err error) string {
	if Status(err) >= fiber.StatusInternalServerError {
		if errors.Is(err, errs.ErrMigrationIncomplete) {
			return errs.ErrMigrationIncomplete.Error()
		}
		return "internal server error"
	}
	return err.Error()
}

// Text writes err as a plain-text body.
func Text(c *fiber.Ctx, err error) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(Status(err)).SendString(Message(err))
}

// JSON writes err as {"error": message}.
func JSON(c *fiber.Ctx, err error) error {
	return c.Status(Status(err)).JSON(fiber.Map{
		"error": Message(err),
	})
}
