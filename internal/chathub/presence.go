package chathub

import (
	"context"
	"log"
	"sort"
	"sync"

	"livedesk/backend/internal/models"
)

// PresenceTracker keeps the transient in-memory mirror of who is connected:
// identity summaries plus a live-count mirror seeded from the persisted row
// at register time. The mirror is only valid while an identity is connected;
// the authoritative counts live in the store.
type PresenceTracker struct {
	mu     sync.RWMutex
	online map[string]models.UserSummary
	counts map[string]int

	// lastVersion remembers the highest snapshot version handed out, so a
	// failed version fetch can still produce a locally monotonic value.
	lastVersion uint64
}

// NewPresenceTracker builds an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		online: make(map[string]models.UserSummary),
		counts: make(map[string]int),
	}
}

// Track marks the identity online and seeds its live-count mirror from the
// persisted state. Re-tracking an already-tracked identity overwrites the
// mirror.
func (p *PresenceTracker) Track(user *models.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[user.ID] = user.CurrentChats
	p.online[user.ID] = user.Summary(user.CurrentChats)
}

// Untrack marks the identity offline. Untracking an identity that is not
// tracked is a no-op.
func (p *PresenceTracker) Untrack(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	delete(p.counts, userID)
}

// IsOnline reports whether the identity is currently tracked.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}

// SetCount refreshes the live-count mirror for a tracked identity with a
// value returned by a storage-level atomic update. Ignored for identities
// that are not connected.
func (p *PresenceTracker) SetCount(userID string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[userID]; !ok {
		return
	}
	p.counts[userID] = count
	s := p.online[userID]
	s.LiveCount = count
	p.online[userID] = s
}

// OnlineByRole returns summaries of the connected identities with the given
// role. Responders come back ordered by ascending live-count with ties broken
// by id, giving the selector a stable first-found order; other roles are
// returned in id order.
func (p *PresenceTracker) OnlineByRole(role models.Role) []models.UserSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.onlineByRole(role)
}

// onlineByRole collects the role's summaries; callers hold p.mu.
func (p *PresenceTracker) onlineByRole(role models.Role) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(p.online))
	for _, s := range p.online {
		if s.Role == role {
			out = append(out, s)
		}
	}
	if role == models.RoleResponder {
		sort.Slice(out, func(i, j int) bool {
			if out[i].LiveCount != out[j].LiveCount {
				return out[i].LiveCount < out[j].LiveCount
			}
			return out[i].ID < out[j].ID
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out
}

// snapshot stamps the current role lists with the next monotonic version in
// a single critical section, so a higher version never carries older list
// contents. When the store-backed counter is unavailable the previous value
// plus one is used.
func (p *PresenceTracker) snapshot(fromStore uint64, ok bool) models.PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok && fromStore > p.lastVersion {
		p.lastVersion = fromStore
	} else {
		p.lastVersion++
	}
	return models.PresenceSnapshot{
		Version:    p.lastVersion,
		Responders: p.onlineByRole(models.RoleResponder),
		Observers:  p.onlineByRole(models.RoleObserver),
	}
}

// PushPresenceSnapshot broadcasts the refreshed online-responder and
// online-observer lists to every connected client, tagged with a version that
// only moves forward so stale snapshots can be discarded on arrival.
func (h *Hub) PushPresenceSnapshot(ctx context.Context) {
	v, err := h.Storage.NextPresenceVersion(ctx)
	if err != nil {
		log.Printf("WARNING: presence version fetch failed, using local counter: %v", err)
	}
	snap := h.Presence.snapshot(v, err == nil)
	h.broadcastAll(models.NewEvent(models.EventPresenceSnapshot, snap))
}
