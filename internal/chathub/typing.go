package chathub

import (
	"context"
	"log"
	"time"

	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"
)

type typingKey struct {
	conversationID string
	userID         string
}

type typingState struct {
	isTyping bool
	at       time.Time
}

// Typing propagates an ephemeral typing signal to every other subscriber of
// the conversation's room. Nothing is persisted and nothing is queued: a
// dropped signal self-heals on the next keystroke or on the client-side
// expiry window.
//
// A signal repeating the last propagated state for the same (conversation,
// identity) pair inside the expiry window is suppressed; a changed state
// always propagates. Signals for inactive or unknown conversations, or from
// non-members, are silently ignored.
func (h *Hub) Typing(ctx context.Context, conversationID string, sender *models.User, isTyping bool) {
	if !h.recordTyping(conversationID, sender.ID, isTyping, time.Now()) {
		return
	}

	conv, err := h.Storage.GetConversationByID(ctx, conversationID)
	if err != nil {
		log.Printf("WARNING: typing lookup failed for conversation %s: %v", conversationID, err)
		return
	}
	if conv == nil || !conv.IsActive {
		return
	}
	if !conv.HasParticipant(sender.ID) && !sender.Role.Privileged() {
		return
	}

	ev := models.NewEvent(models.EventPeerTyping, models.PeerTyping{
		UserID:   sender.ID,
		IsTyping: isTyping,
	})
	h.broadcastRoom(conversationID, func(c Client) (models.Event, bool) {
		if c.GetUserID() == sender.ID {
			return models.Event{}, false
		}
		return ev, true
	})
}

// recordTyping reports whether the signal should propagate and caches it if
// so. The window is measured from the last propagated signal, not the last
// received one: continuous typing keeps relaying one signal per window, so
// the peer's indicator refreshes before its client-side expiry.
func (h *Hub) recordTyping(conversationID, userID string, isTyping bool, now time.Time) bool {
	key := typingKey{conversationID: conversationID, userID: userID}

	h.typingMu.Lock()
	defer h.typingMu.Unlock()
	prev, ok := h.typing[key]
	if ok && prev.isTyping == isTyping && now.Sub(prev.at) < config.TypingExpiry {
		return false
	}
	h.typing[key] = typingState{isTyping: isTyping, at: now}
	return true
}

// sweepTyping drops cache entries older than the expiry window.
func (h *Hub) sweepTyping(now time.Time) {
	h.typingMu.Lock()
	defer h.typingMu.Unlock()
	for key, st := range h.typing {
		if now.Sub(st.at) >= config.TypingExpiry {
			delete(h.typing, key)
		}
	}
}

// clearTypingFor forgets all cached signals for an ended conversation.
func (h *Hub) clearTypingFor(conversationID string) {
	h.typingMu.Lock()
	defer h.typingMu.Unlock()
	for key := range h.typing {
		if key.conversationID == conversationID {
			delete(h.typing, key)
		}
	}
}
