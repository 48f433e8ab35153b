package handlers

import (
	"net/http"
	"time"

	"faircore-backend/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams platform events (pool balance, payout outcomes,
// proposal updates) to connected clients.
type WebSocketHandler struct {
	bus    *events.Bus
	logger *zap.Logger
}

func NewWebSocketHandler(bus *events.Bus, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{bus: bus, logger: logger}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := h.bus.Subscribe(
		events.TopicPoolBalance,
		events.TopicPayoutExecuted,
		events.TopicPayoutRefunded,
		events.TopicProposal,
	)
	defer cancel()

	// Reader goroutine only detects disconnects; clients send nothing else.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket write failed", zap.Error(err))
				}
				return
			}
		}
	}
}
