package system

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"twol-crm/internal/config"
	"twol-crm/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type event struct {
	Type  string `json:"type"`
	SetID string `json:"setId"`
}

func TestHubScopesEventsToTenant(t *testing.T) {
	h := newHub(zap.NewNop())

	a, ok := h.subscribe("tenant-a")
	require.True(t, ok)
	b, ok := h.subscribe("tenant-b")
	require.True(t, ok)

	h.Publish("tenant-a", event{Type: "permission_set.created", SetID: "s1"})

	require.Len(t, a.send, 1)
	var got event
	require.NoError(t, json.Unmarshal(<-a.send, &got))
	assert.Equal(t, event{Type: "permission_set.created", SetID: "s1"}, got)
	assert.Empty(t, b.send)
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := newHub(zap.NewNop())
	s, _ := h.subscribe("t")

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("t", event{Type: "x"})
	}
	assert.Len(t, s.send, subscriberBuffer)
}

func TestHubUnsubscribeAndClose(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	h := NewHub(lc, zap.NewNop())
	lc.RequireStart()

	s1, _ := h.subscribe("t")
	s2, _ := h.subscribe("t")
	assert.Equal(t, 2, h.Subscribers("t"))

	h.unsubscribe(s1)
	h.unsubscribe(s1)
	assert.Equal(t, 1, h.Subscribers("t"))
	_, open := <-s1.send
	assert.False(t, open)

	lc.RequireStop()
	_, open = <-s2.send
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("t"))

	h.unsubscribe(s2)
	_, ok := h.subscribe("t")
	assert.False(t, ok)

	// publishing after close is harmless
	h.Publish("t", event{Type: "x"})
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	up := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantStatus int
		wantBody   map[string]string
	}{
		{"all up", map[string]HealthChecker{"postgres": up, "mongodb": up}, fiber.StatusOK,
			map[string]string{"status": "ok", "postgres": "up", "mongodb": "up"}},
		{"postgres down", map[string]HealthChecker{"postgres": down, "mongodb": up}, fiber.StatusServiceUnavailable,
			map[string]string{"status": "degraded", "postgres": "down", "mongodb": "up"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			newHealthApi(tt.checks, zap.NewNop()).Setup(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := fiber.New()
	newHealthApi(nil, zap.NewNop()).Setup(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestWebSocketRouteRequiresUpgrade(t *testing.T) {
	app := fiber.New()
	cfg := &config.Config{SkipAuth: true}
	NewWebSocketApi(NewWebSocketController(newHub(zap.NewNop()), zap.NewNop()), cfg).Setup(app)

	req := httptest.NewRequest("GET", "/api/ws", nil)
	req.Header.Set(middleware.DevTenantHeader, "tenant-a")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestDebugRoute(t *testing.T) {
	hub := newHub(zap.NewNop())
	hub.subscribe("tenant-a")

	app := fiber.New()
	NewDebugApi(NewDebugController(hub), &config.Config{SkipAuth: true}).Setup(app)

	req := httptest.NewRequest("GET", "/api/debug/me", nil)
	req.Header.Set(middleware.DevTenantHeader, "tenant-a")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tenant-a", body["tenant_id"])
	assert.Equal(t, float64(1), body["subscribers"])

	prod := fiber.New()
	NewDebugApi(NewDebugController(hub), &config.Config{Environment: "production"}).Setup(prod)
	resp, err = prod.Test(httptest.NewRequest("GET", "/api/debug/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
