// internal/transport/ws/client.go
package ws

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"astrolive/internal/domain"
	"astrolive/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is one live connection of an account.
type Client struct {
	address   string
	accountID string
	role      domain.Role
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, address, accountID string, role domain.Role) *Client {
	return &Client{
		address:   address,
		accountID: accountID,
		role:      role,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
}

// readPump delivers inbound frames to handle until the connection fails, then
// runs onClose once.
func (c *Client) readPump(handle func(*Client, inboundMessage), onClose func(*Client)) {
	defer func() {
		onClose(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("failed to set read deadline", "address", c.address, "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", "address", c.address, "error", err)
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			c.reply(events.ChatError, events.ErrorPayload{Message: "malformed frame"})
			continue
		}
		handle(c, msg)
	}
}

// writePump drains the send channel to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.hub.logger.Warn("websocket write failed", "address", c.address, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply sends an event straight back to this connection.
func (c *Client) reply(event string, payload any) {
	_ = c.hub.Send(c.address, event, payload)
}
