package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"livedesk/backend/internal/chathub"
	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// participantView is a participant as seen by a specific viewer. An
// anonymous requester's name and email are hidden from co-participants and
// history views, never from observers.
type participantView struct {
	UserID      string      `json:"user_id"`
	Role        models.Role `json:"role"`
	IsAnonymous bool        `json:"is_anonymous"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
}

type conversationView struct {
	ID           string            `json:"id"`
	Participants []participantView `json:"participants"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Messages     []models.Message  `json:"messages,omitempty"`
}

func renderParticipant(p models.Participant, viewer *models.User) participantView {
	view := participantView{
		UserID:      p.UserID,
		Role:        p.Role,
		IsAnonymous: p.IsAnonymous,
	}
	masked := p.IsAnonymous && p.UserID != viewer.ID && !viewer.Role.Privileged()
	if masked {
		view.Name = "Anonymous"
		return view
	}
	if p.User != nil {
		view.Name = p.User.Name
		view.Email = p.User.Email
	}
	return view
}

func renderConversation(conv *models.Conversation, viewer *models.User) conversationView {
	view := conversationView{
		ID:        conv.ID,
		IsActive:  conv.IsActive,
		CreatedAt: conv.CreatedAt,
		EndedAt:   conv.EndedAt,
	}
	for _, p := range conv.Participants {
		view.Participants = append(view.Participants, renderParticipant(p, viewer))
	}
	return view
}

func requestCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), config.StoreTimeout)
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(config.DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = config.DefaultPageSize
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}
	return page, limit
}

type createConversationRequest struct {
	TargetUserID string `json:"target_user_id"`
	IsAnonymous  bool   `json:"is_anonymous"`
}

// CreateConversation opens a new conversation: either load-balanced onto the
// least-busy online responder, or bound to an explicitly named identity when
// the caller is privileged.
func (h *Handler) CreateConversation(c *gin.Context) {
	user := currentUser(c)

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, chathub.ErrValidationFailed)
		return
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	conv, err := h.Hub.Assign(ctx, user, req.TargetUserID, req.IsAnonymous)
	if err != nil {
		abortWith(c, err)
		return
	}

	// Reload with participant users for the response shape.
	full, err := h.Storage.GetConversationByID(ctx, conv.ID)
	if err == nil && full != nil {
		conv = full
	}
	c.JSON(http.StatusCreated, gin.H{"conversation": renderConversation(conv, user)})
}

// EndConversation closes a conversation by id on behalf of the caller.
func (h *Handler) EndConversation(c *gin.Context) {
	user := currentUser(c)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Hub.End(ctx, c.Param("id"), user); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation ended"})
}

// ListMyConversations returns one page of the caller's conversation history.
func (h *Handler) ListMyConversations(c *gin.Context) {
	user := currentUser(c)
	h.listConversations(c, user, user.ID)
}

// ListUserConversations returns one page of a named identity's conversation
// history. Privileged callers only.
func (h *Handler) ListUserConversations(c *gin.Context) {
	user := currentUser(c)
	if !user.Role.Privileged() {
		abortWith(c, chathub.ErrUnauthorized)
		return
	}
	h.listConversations(c, user, c.Param("id"))
}

func (h *Handler) listConversations(c *gin.Context, viewer *models.User, subjectID string) {
	page, limit := pageParams(c)

	ctx, cancel := requestCtx(c)
	defer cancel()

	convs, total, err := h.Storage.ConversationsFor(ctx, subjectID, page, limit)
	if err != nil {
		abortWith(c, chathub.ErrTransientStore)
		return
	}

	views := make([]conversationView, 0, len(convs))
	for i := range convs {
		views = append(views, renderConversation(&convs[i], viewer))
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": views,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// GetConversation returns the full conversation detail with its ordered
// message sequence.
func (h *Handler) GetConversation(c *gin.Context) {
	user := currentUser(c)
	conversationID := c.Param("id")

	ctx, cancel := requestCtx(c)
	defer cancel()

	conv, err := h.Storage.GetConversationByID(ctx, conversationID)
	if err != nil {
		abortWith(c, chathub.ErrTransientStore)
		return
	}
	if conv == nil {
		abortWith(c, chathub.ErrNotFound)
		return
	}
	if !conv.HasParticipant(user.ID) && !user.Role.Privileged() {
		abortWith(c, chathub.ErrUnauthorized)
		return
	}

	msgs, err := h.Storage.GetMessages(ctx, conversationID)
	if err != nil {
		abortWith(c, chathub.ErrTransientStore)
		return
	}

	view := renderConversation(conv, user)
	view.Messages = msgs
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

// PostMessage is the request/response fallback for sending a message when
// the live channel is unavailable. It routes through the same relay as the
// live-channel send, so it produces the identical persisted shape and
// triggers the identical broadcast.
func (h *Handler) PostMessage(c *gin.Context) {
	user := currentUser(c)

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, chathub.ErrValidationFailed)
		return
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	msg, err := h.Hub.SendMessage(ctx, c.Param("id"), user, req.Content)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
