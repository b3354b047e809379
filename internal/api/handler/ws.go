package handler

import (
	"context"
	"net/http"

	"livedesk/backend/internal/chathub"
	"livedesk/backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket validates the bearer credential once, upgrades the
// connection and registers it with the hub. The credential may arrive in the
// Authorization header or, for browser websocket clients, the token query
// parameter.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, user, conn)

	ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
	defer cancel()
	if err := h.Hub.Register(ctx, user, client); err != nil {
		conn.Close()
		return
	}

	client.Run()
}
