package handler

import (
	"errors"
	"net/http"

	"livedesk/backend/internal/chathub"
	"livedesk/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler carries the hub and storage references for all HTTP endpoints.
type Handler struct {
	Hub       *chathub.Hub
	Storage   storage.Storage
	JWTSecret []byte
}

func NewHandler(hub *chathub.Hub, s storage.Storage, jwtSecret []byte) *Handler {
	return &Handler{Hub: hub, Storage: s, JWTSecret: jwtSecret}
}

// RegisterRoutes wires every endpoint onto the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.AuthRequired())
	{
		api.POST("/conversations", h.CreateConversation)
		api.GET("/conversations", h.ListMyConversations)
		api.GET("/conversations/:id", h.GetConversation)
		api.POST("/conversations/:id/end", h.EndConversation)
		api.POST("/conversations/:id/messages", h.PostMessage)
		api.GET("/users/:id/conversations", h.ListUserConversations)
	}
}

// abortWith maps a taxonomy error onto an HTTP status and a stable JSON code.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chathub.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, chathub.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chathub.ErrNoResponderAvailable),
		errors.Is(err, chathub.ErrConversationClosed):
		status = http.StatusConflict
	case errors.Is(err, chathub.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, chathub.ErrTransientStore):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":  chathub.CodeOf(err),
		"error": err.Error(),
	})
}
