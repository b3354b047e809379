package chathub

import (
	"context"
	"log"

	"livedesk/backend/internal/models"
)

// Join subscribes the identity's connection to the conversation's room.
// Participants may join their own conversations; observers may join any
// conversation read-only.
func (h *Hub) Join(ctx context.Context, conversationID string, user *models.User, client Client) error {
	conv, err := h.Storage.GetConversationByID(ctx, conversationID)
	if err != nil {
		return storeErr(err)
	}
	if conv == nil {
		return ErrNotFound
	}
	if !conv.HasParticipant(user.ID) && !user.Role.Privileged() {
		return ErrUnauthorized
	}
	h.subscribe(conversationID, client)
	return nil
}

// Leave unsubscribes the identity from the room. Idempotent.
func (h *Hub) Leave(conversationID, userID string) {
	h.unsubscribe(conversationID, userID)
}

// End closes the conversation on behalf of the initiator: flips the active
// flag exactly once, decrements every participant's live-count, broadcasts
// the ended event to the room and refreshes global presence. Ending an
// already-ended conversation is a no-op, not an error, so counts are never
// decremented twice.
func (h *Hub) End(ctx context.Context, conversationID string, initiator *models.User) error {
	conv, err := h.Storage.GetConversationByID(ctx, conversationID)
	if err != nil {
		return storeErr(err)
	}
	if conv == nil {
		return ErrNotFound
	}
	if !conv.HasParticipant(initiator.ID) && !initiator.Role.Privileged() {
		return ErrUnauthorized
	}

	if err := h.finishConversation(ctx, conv); err != nil {
		return err
	}
	h.PushPresenceSnapshot(ctx)
	return nil
}

// finishConversation performs the shared end-state transition used by End
// and by disconnect reconciliation. The storage-level compare-and-flip
// guarantees that of all concurrent end attempts exactly one performs the
// decrements and the broadcast. The room's relay lock is taken so the flip
// serializes with in-flight sends: a message either lands before the ended
// event or is rejected, never after it.
func (h *Hub) finishConversation(ctx context.Context, conv *models.Conversation) error {
	r := h.getRoom(conv.ID, true)
	r.relayMu.Lock()
	defer r.relayMu.Unlock()

	flipped, err := h.Storage.CloseConversation(ctx, conv.ID)
	if err != nil {
		h.dropRoomIfEmpty(conv.ID, r)
		return storeErr(err)
	}
	if !flipped {
		// Already ended by a concurrent end or reconciliation.
		h.dropRoomIfEmpty(conv.ID, r)
		return nil
	}

	for _, p := range conv.Participants {
		count, err := h.Storage.AdjustLiveCount(ctx, p.UserID, -1)
		if err != nil {
			log.Printf("ERROR: live-count decrement failed for %s in conversation %s: %v",
				p.UserID, conv.ID, err)
			continue
		}
		h.Presence.SetCount(p.UserID, count)
	}

	ended := models.NewEvent(models.EventConversationEnded, models.RoomRef{ConversationID: conv.ID})
	h.broadcastRoom(conv.ID, func(Client) (models.Event, bool) { return ended, true })
	h.closeRoom(conv.ID)
	h.clearTypingFor(conv.ID)

	log.Printf("conversation %s ended", conv.ID)
	return nil
}
