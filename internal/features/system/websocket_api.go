package system

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/common/api"
	"bank-approvals/internal/features/events"
)

// WebSocketApi exposes the live workflow transition feed.
type WebSocketApi struct {
	Hub *events.Hub
}

func NewWebSocketApi(hub *events.Hub) api.Route {
	return &WebSocketApi{
		Hub: hub,
	}
}

func (h *WebSocketApi) Setup(app *fiber.App) {
	app.Get("/api/ws", websocket.New(h.Hub.Serve))
}
