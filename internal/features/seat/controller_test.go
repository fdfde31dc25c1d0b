package seat

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeatRoutes(t *testing.T) {
	f := newFixture(t)
	app := fiber.New()
	NewSeatApi(NewSeatController(f.svc, zap.NewNop()), &config.Config{SkipAuth: true}, f.svc).Setup(app)

	call := func(method, path, body string) (int, string) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.DevTenantHeader, tenantA)
		resp, err := app.Test(req)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(raw)
	}

	status, body := call("POST", "/api/seats", `{"userId":"u1","permissionSetId":"set-limited"}`)
	assert.Equal(t, fiber.StatusBadRequest, status, body)
	assert.Contains(t, body, "permissionSetId must be a valid id")

	f.sets.sets["0b8f7f6e-2a3c-4d5e-8f90-1a2b3c4d5e6f"] = f.sets.sets["set-limited"]
	status, body = call("POST", "/api/seats", `{"userId":"u1","permissionSetId":"0b8f7f6e-2a3c-4d5e-8f90-1a2b3c4d5e6f"}`)
	assert.Equal(t, fiber.StatusCreated, status, body)
	assert.Contains(t, body, `"id":"seat-1"`)

	status, body = call("GET", "/api/seats/seat-1/permissions", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"permissionDataSet"`)

	status, _ = call("GET", "/api/seats/missing/permissions", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = call("PUT", "/api/seats/seat-1/permission-set", `{"permissionSetId":"0b8f7f6e-2a3c-4d5e-8f90-1a2b3c4d5e6f"}`)
	assert.Equal(t, fiber.StatusOK, status)
}
