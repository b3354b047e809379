package chathub

import (
	"context"
	"log"
	"sync"
	"time"

	"livedesk/backend/internal/config"
	"livedesk/backend/internal/models"
	"livedesk/backend/internal/storage"
)

// Hub is the single authoritative coordinator for a deployment. It owns the
// connected-client registry, the room registry and the presence tracker, and
// exposes every coordination operation (assignment, lifecycle, relay, typing,
// disconnect reconciliation). It is constructed once at process start and
// passed by reference to everything that needs it.
type Hub struct {
	Storage storage.Storage

	Presence *PresenceTracker

	mu      sync.RWMutex
	clients map[string]Client
	rooms   map[string]*room

	typingMu sync.Mutex
	typing   map[typingKey]typingState
}

// room is the live subscription group for one conversation. Membership and
// relay order are both serialized per conversation: mu guards the member set,
// relayMu is held across persist+broadcast so subscribers observe messages in
// persistence order.
type room struct {
	mu      sync.Mutex
	relayMu sync.Mutex
	members map[string]Client
}

// NewHub builds the coordinator around its persistence service.
func NewHub(s storage.Storage) *Hub {
	return &Hub{
		Storage:  s,
		Presence: NewPresenceTracker(),
		clients:  make(map[string]Client),
		rooms:    make(map[string]*room),
		typing:   make(map[typingKey]typingState),
	}
}

// Run hosts the hub's background maintenance until ctx is cancelled.
// Currently that is the typing-cache sweep.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(config.TypingExpiry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.sweepTyping(time.Now())
		}
	}
}

// opCtx bounds a persistence-backed operation triggered by a live-channel
// event so a stalled store surfaces as a failure instead of a hang.
func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), config.StoreTimeout)
}

// Register binds an authenticated identity's connection to the hub: marks it
// online, seeds the presence mirror from the persisted row and pushes a fresh
// presence snapshot to everyone. A second connection for the same identity
// replaces the first.
func (h *Hub) Register(ctx context.Context, user *models.User, client Client) error {
	if err := h.Storage.SetUserOnline(ctx, user.ID, true); err != nil {
		return storeErr(err)
	}
	if err := h.Storage.AddPresence(ctx, user.Role, user.ID); err != nil {
		log.Printf("WARNING: failed to mirror presence for %s: %v", user.ID, err)
	}

	h.Presence.Track(user)

	h.mu.Lock()
	old := h.clients[user.ID]
	h.clients[user.ID] = client
	h.mu.Unlock()

	if old != nil && old != client {
		h.dropFromAllRooms(old)
		old.Close()
	}

	log.Printf("client registered: %s (%s)", user.ID, user.Role)
	h.PushPresenceSnapshot(ctx)
	return nil
}

// Unregister is invoked by the gateway's connection-loss path. It removes the
// connection and runs the disconnect reconciliation sequence. Unregistering a
// connection that was already replaced or never registered is a no-op.
func (h *Hub) Unregister(client Client) {
	userID := client.GetUserID()

	h.mu.Lock()
	current, ok := h.clients[userID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, userID)
	h.mu.Unlock()

	h.dropFromAllRooms(client)

	ctx, cancel := opCtx()
	defer cancel()
	h.ReconcileDisconnect(ctx, userID, client.GetRole())

	client.Close()
	log.Printf("client unregistered: %s", userID)
}

// getRoom returns the room for a conversation, creating it when create is
// set.
func (h *Hub) getRoom(conversationID string, create bool) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[conversationID]
	if !ok && create {
		r = &room{members: make(map[string]Client)}
		h.rooms[conversationID] = r
	}
	return r
}

// subscribe adds the connection to the conversation's room.
func (h *Hub) subscribe(conversationID string, client Client) {
	r := h.getRoom(conversationID, true)
	r.mu.Lock()
	r.members[client.GetUserID()] = client
	r.mu.Unlock()
}

// unsubscribe removes the identity's connection from the room; the room
// itself is dropped once empty. Idempotent.
func (h *Hub) unsubscribe(conversationID, userID string) {
	r := h.getRoom(conversationID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.members, userID)
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		h.mu.Lock()
		if cur, ok := h.rooms[conversationID]; ok && cur == r {
			delete(h.rooms, conversationID)
		}
		h.mu.Unlock()
	}
}

// closeRoom tears the room down after a conversation ends.
func (h *Hub) closeRoom(conversationID string) {
	h.mu.Lock()
	delete(h.rooms, conversationID)
	h.mu.Unlock()
}

// dropRoomIfEmpty removes the room when it has no members and is still the
// registered instance. Rooms are created on demand before the conversation
// is validated; a failed operation must not leave one behind.
func (h *Hub) dropRoomIfEmpty(conversationID string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.rooms[conversationID]; !ok || cur != r {
		return
	}
	r.mu.Lock()
	empty := len(r.members) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, conversationID)
	}
}

// dropFromAllRooms guarantees the unsubscribe step runs for every room the
// connection had joined, whatever state it died in.
func (h *Hub) dropFromAllRooms(client Client) {
	userID := client.GetUserID()

	h.mu.RLock()
	ids := make([]string, 0, len(h.rooms))
	for id, r := range h.rooms {
		r.mu.Lock()
		if r.members[userID] == client {
			ids = append(ids, id)
		}
		r.mu.Unlock()
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.unsubscribe(id, userID)
	}
}

// deliver hands an event to one connection without blocking. A connection
// whose send buffer is full misses the event; live delivery is best-effort
// and history fetch is the catch-up path.
func (h *Hub) deliver(c Client, ev models.Event) {
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: dropping %s event for slow client %s", ev.Event, c.GetUserID())
	}
}

// broadcastRoom sends a per-recipient rendered event to every member of the
// conversation's room. The render callback may exclude a recipient by
// returning false.
func (h *Hub) broadcastRoom(conversationID string, render func(Client) (models.Event, bool)) {
	r := h.getRoom(conversationID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	members := make([]Client, 0, len(r.members))
	for _, c := range r.members {
		members = append(members, c)
	}
	r.mu.Unlock()

	for _, c := range members {
		if ev, ok := render(c); ok {
			h.deliver(c, ev)
		}
	}
}

// broadcastAll sends one event to every connected client.
func (h *Hub) broadcastAll(ev models.Event) {
	h.mu.RLock()
	clients := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.deliver(c, ev)
	}
}
