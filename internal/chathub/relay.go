package chathub

import (
	"context"
	"strings"

	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"
)

// SendMessage persists a message to an active conversation and fans it out
// to every connection in the conversation's room. The live-channel send and
// the request/response fallback both route here, so they produce the same
// persisted shape and trigger the same broadcast.
//
// The room's relay lock is held from the active-check through the broadcast:
// within one conversation subscribers observe messages in persistence order,
// and a message can never slip in after the conversation ends.
func (h *Hub) SendMessage(ctx context.Context, conversationID string, sender *models.User, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > config.MaxMessageLength {
		return nil, ErrValidationFailed
	}

	r := h.getRoom(conversationID, true)
	msg, err := h.relay(ctx, r, conversationID, sender, content)
	if err != nil {
		// A rejected send must not keep an on-demand room alive.
		h.dropRoomIfEmpty(conversationID, r)
		return nil, err
	}
	return msg, nil
}

// relay performs the checked persist+broadcast under the room's relay lock.
func (h *Hub) relay(ctx context.Context, r *room, conversationID string, sender *models.User, content string) (*models.Message, error) {
	r.relayMu.Lock()
	defer r.relayMu.Unlock()

	conv, err := h.Storage.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, storeErr(err)
	}
	if conv == nil {
		return nil, ErrNotFound
	}
	senderPart, isParticipant := conv.ParticipantFor(sender.ID)
	if !isParticipant && !sender.Role.Privileged() {
		return nil, ErrUnauthorized
	}
	if !conv.IsActive {
		return nil, ErrConversationClosed
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderRole:     sender.Role,
		Content:        content,
	}
	if err := h.Storage.SaveMessage(ctx, msg); err != nil {
		return nil, storeErr(err)
	}

	// Broadcast rendering is per recipient: an anonymous requester is
	// masked for co-participants but never for observers or themselves.
	anonymous := isParticipant && senderPart.IsAnonymous
	full := models.NewEvent(models.EventNewMessage, models.NewMessage{
		Message: *msg,
		Sender:  sender.Summary(0),
	})
	masked := models.NewEvent(models.EventNewMessage, models.NewMessage{
		Message: *msg,
		Sender:  models.UserSummary{ID: sender.ID, Name: "Anonymous", Role: sender.Role},
	})

	h.broadcastRoom(conversationID, func(c Client) (models.Event, bool) {
		if anonymous && c.GetUserID() != sender.ID && !c.GetRole().Privileged() {
			return masked, true
		}
		return full, true
	})

	return msg, nil
}
