package chathub

import (
	"context"
	"log"

	"livedesk/backend/internal/models"
)

// ReconcileDisconnect runs the best-effort cleanup sequence for an identity
// whose connection was lost: mark it offline, end every active conversation
// it participates in, then push one fresh presence snapshot.
//
// Reconciliation is not transactional across conversations: a store failure
// on one conversation is logged and the rest are still reconciled.
func (h *Hub) ReconcileDisconnect(ctx context.Context, userID string, role models.Role) {
	h.Presence.Untrack(userID)

	if err := h.Storage.SetUserOnline(ctx, userID, false); err != nil {
		log.Printf("ERROR: failed to mark %s offline: %v", userID, err)
	}
	if err := h.Storage.RemovePresence(ctx, role, userID); err != nil {
		log.Printf("WARNING: failed to clear presence mirror for %s: %v", userID, err)
	}

	convs, err := h.Storage.ActiveConversationsFor(ctx, userID)
	if err != nil {
		log.Printf("ERROR: failed to load active conversations for %s, skipping conversation cleanup: %v", userID, err)
	}
	for i := range convs {
		if err := h.finishConversation(ctx, &convs[i]); err != nil {
			log.Printf("ERROR: failed to reconcile conversation %s for %s: %v", convs[i].ID, userID, err)
			continue
		}
	}

	h.PushPresenceSnapshot(ctx)
}
