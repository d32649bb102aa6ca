package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"bank-approvals/internal/features/workflow"
)

// TransitionMessage is pushed to websocket subscribers on every state change.
type TransitionMessage struct {
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	EntityType string    `json:"entity_type"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub fans workflow transitions out to connected websocket clients.
// Approval dashboards subscribe here instead of polling the status API.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", count))
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client disconnected", zap.Int("clients", count))
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastTransition pushes a state change to every connected client.
// Dead connections are dropped on write failure.
func (h *Hub) BroadcastTransition(workflowID, entityType string, from, to workflow.WorkflowState) {
	msg := TransitionMessage{
		Type:       "workflow.transition",
		WorkflowID: workflowID,
		EntityType: entityType,
		From:       string(from),
		To:         string(to),
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal transition message", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister(c)
			c.Close()
		}
	}
}

// Serve is the fiber websocket handler. The read loop exists to detect
// disconnects; inbound messages are ignored.
func (h *Hub) Serve(c *websocket.Conn) {
	h.register(c)
	defer func() {
		h.unregister(c)
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
