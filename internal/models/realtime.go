package models

import "encoding/json"

// Live-channel event names, both directions.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventSendMessage     = "send-message"
	EventTyping          = "typing"
	EventEndConversation = "end-conversation"

	EventPresenceSnapshot  = "presence-snapshot"
	EventNewMessage        = "new-message"
	EventPeerTyping        = "peer-typing"
	EventConversationEnded = "conversation-ended"
	EventError             = "error"
)

// Event is the wire envelope for the live channel in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload into an envelope. Payload types are all local
// structs, so marshalling cannot fail in practice; a failure yields an empty
// data field rather than an error return at every call site.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Event: name}
	}
	return Event{Event: name, Data: data}
}

// RoomRef addresses a single conversation; used by join-room, leave-room,
// end-conversation and conversation-ended.
type RoomRef struct {
	ConversationID string `json:"conversation_id"`
}

// OutgoingMessage is the send-message request payload.
type OutgoingMessage struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// TypingSignal is the typing request payload. Never persisted.
type TypingSignal struct {
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

// PresenceSnapshot is pushed to every connected client whenever global
// presence changes. Version increases monotonically so a client can discard
// a snapshot that arrives after a newer one.
type PresenceSnapshot struct {
	Version    uint64        `json:"version"`
	Responders []UserSummary `json:"responders"`
	Observers  []UserSummary `json:"observers"`
}

// NewMessage is the room-scoped payload for a delivered message. Sender is
// rendered per recipient: anonymous requesters are masked for everyone but
// observers.
type NewMessage struct {
	Message Message     `json:"message"`
	Sender  UserSummary `json:"sender"`
}

// PeerTyping is the room-scoped payload for a relayed typing signal.
type PeerTyping struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// ErrorEvent is delivered only to the connection whose action was rejected.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
