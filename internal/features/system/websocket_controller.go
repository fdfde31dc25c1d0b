package system

import (
	"time"

	"twol-crm/internal/common/models"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type WebSocketController struct {
	hub    *Hub
	logger *zap.Logger
}

func NewWebSocketController(hub *Hub, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{hub: hub, logger: logger}
}

// HandleWebSocket streams the tenant's permission set events until either side closes.
func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	tenantID, _ := c.Locals(string(models.TenantIDKey)).(string)
	if tenantID == "" {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "tenant required"))
		return
	}

	sub, ok := h.hub.subscribe(tenantID)
	if !ok {
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	defer h.hub.unsubscribe(sub)

	// the reader only notices the peer going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload, ok := <-sub.send:
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("websocket write failed", zap.String("tenant_id", tenantID), zap.Error(err))
				return
			}
		}
	}
}
