package chathub

import (
	"context"
	"log"

	"livedesk/backend/internal/models"
)

// Assign creates a new active conversation for the requester.
//
// With an explicit target id (privileged callers only) the target is bound
// unconditionally provided it exists and is a valid counterpart. Otherwise
// the least-loaded online responder is selected from the presence mirror;
// an empty pool yields ErrNoResponderAvailable, which is a routine outcome.
//
// On success both participants' live-counts are incremented through the
// storage-level atomic update and the presence mirror is refreshed from the
// returned values.
func (h *Hub) Assign(ctx context.Context, requester *models.User, explicitTargetID string, anonymous bool) (*models.Conversation, error) {
	var target *models.User

	switch {
	case explicitTargetID != "":
		if !requester.Role.Privileged() {
			return nil, ErrUnauthorized
		}
		if explicitTargetID == requester.ID {
			return nil, ErrValidationFailed
		}
		t, err := h.Storage.GetUserByID(ctx, explicitTargetID)
		if err != nil {
			return nil, storeErr(err)
		}
		if t == nil {
			return nil, ErrNotFound
		}
		if t.Role.Privileged() {
			return nil, ErrValidationFailed
		}
		target = t

	case requester.Role == models.RoleRequester:
		candidates := h.Presence.OnlineByRole(models.RoleResponder)
		if len(candidates) == 0 {
			return nil, ErrNoResponderAvailable
		}
		t, err := h.Storage.GetUserByID(ctx, candidates[0].ID)
		if err != nil {
			return nil, storeErr(err)
		}
		if t == nil {
			return nil, ErrNoResponderAvailable
		}
		target = t

	default:
		// Responders do not open conversations and observers must name
		// their target.
		return nil, ErrValidationFailed
	}

	conv := &models.Conversation{
		IsActive: true,
		Participants: []models.Participant{
			{
				UserID:      requester.ID,
				Role:        requester.Role,
				IsAnonymous: anonymous && requester.Role.CanRequestAnonymity(),
			},
			{
				UserID: target.ID,
				Role:   target.Role,
			},
		},
	}

	if err := h.Storage.CreateConversation(ctx, conv); err != nil {
		return nil, storeErr(err)
	}

	for _, p := range conv.Participants {
		count, err := h.Storage.AdjustLiveCount(ctx, p.UserID, +1)
		if err != nil {
			log.Printf("ERROR: live-count increment failed for %s in conversation %s: %v",
				p.UserID, conv.ID, err)
			return nil, storeErr(err)
		}
		h.Presence.SetCount(p.UserID, count)
	}

	log.Printf("conversation %s created: %s -> %s", conv.ID, requester.ID, target.ID)
	h.PushPresenceSnapshot(ctx)
	return conv, nil
}
