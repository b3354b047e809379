package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"livedesk/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// WebSocketClient implements the Client interface over a gorilla/websocket
// connection.
type WebSocketClient struct {
	User *models.User
	Conn *websocket.Conn
	Hub  *Hub
	Send chan models.Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection for the given identity.
func NewWebSocketClient(hub *Hub, user *models.User, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		User: user,
		Conn: conn,
		Hub:  hub,
		Send: make(chan models.Event, 256),
		done: make(chan struct{}),
	}
}

func (c *WebSocketClient) GetUserID() string                   { return c.User.ID }
func (c *WebSocketClient) GetRole() models.Role                { return c.User.Role }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close signals the write pump to shut the connection down. The send channel
// is left open so a concurrent broadcast never panics; undelivered events are
// simply dropped.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// sendError delivers an operation-scoped error event to this connection
// only; it never reaches other room members.
func (c *WebSocketClient) sendError(err error) {
	ev := models.NewEvent(models.EventError, models.ErrorEvent{
		Code:    CodeOf(err),
		Message: err.Error(),
	})
	select {
	case c.Send <- ev:
	default:
	}
}

// readPump reads envelopes off the wire and dispatches them to hub
// operations. On exit the connection is unregistered, which triggers
// disconnect reconciliation.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message from %s: %v", c.User.ID, err)
			}
			break
		}

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Printf("Error decoding envelope from client %s: %v", c.User.ID, err)
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch routes one inbound envelope to the matching hub operation and
// converts any rejection into a single error event for this connection.
func (c *WebSocketClient) dispatch(ev models.Event) {
	ctx, cancel := opCtx()
	defer cancel()

	switch ev.Event {
	case models.EventJoinRoom:
		var ref models.RoomRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			c.sendError(ErrValidationFailed)
			return
		}
		if err := c.Hub.Join(ctx, ref.ConversationID, c.User, c); err != nil {
			c.sendError(err)
		}

	case models.EventLeaveRoom:
		var ref models.RoomRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			c.sendError(ErrValidationFailed)
			return
		}
		c.Hub.Leave(ref.ConversationID, c.User.ID)

	case models.EventSendMessage:
		var out models.OutgoingMessage
		if err := json.Unmarshal(ev.Data, &out); err != nil {
			c.sendError(ErrValidationFailed)
			return
		}
		if _, err := c.Hub.SendMessage(ctx, out.ConversationID, c.User, out.Content); err != nil {
			c.sendError(err)
		}

	case models.EventTyping:
		var sig models.TypingSignal
		if err := json.Unmarshal(ev.Data, &sig); err != nil {
			return
		}
		c.Hub.Typing(ctx, sig.ConversationID, c.User, sig.IsTyping)

	case models.EventEndConversation:
		var ref models.RoomRef
		if err := json.Unmarshal(ev.Data, &ref); err != nil {
			c.sendError(ErrValidationFailed)
			return
		}
		if err := c.Hub.End(ctx, ref.ConversationID, c.User); err != nil {
			c.sendError(err)
		}

	default:
		log.Printf("unknown event %q from client %s", ev.Event, c.User.ID)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding event for client %s: %v", c.User.ID, err)
				continue
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
