package chathub

import "livedesk/backend/internal/models"

// Client is the interface for one live connection bound to an authenticated
// identity. It abstracts the underlying transport so the hub can manage
// WebSocket connections and test doubles uniformly.
type Client interface {
	// GetUserID returns the identity bound to this connection.
	GetUserID() string
	// GetRole returns the identity's role at connection time.
	GetRole() models.Role

	// GetSendChannel returns the channel the hub writes outbound events
	// to. Delivery is best-effort: the hub drops an event rather than
	// block on a slow connection.
	GetSendChannel() chan<- models.Event

	// Run starts the connection's read and write pumps.
	Run()
	// Close signals the connection to shut down. It is safe to call more
	// than once.
	Close()
}
