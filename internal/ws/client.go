package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

// Client is one countdown socket.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	Send   chan []byte

	hub       *Hub
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID int64, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		hub:    hub,
		done:   make(chan struct{}),
	}
}

// Run serves the socket until the peer disconnects or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.register(c)
	defer c.hub.unregister(c)

	go c.writePump()
	go c.readPump()

	c.countdown(ctx)
}

func (c *Client) queue(msg []byte) {
	select {
	case <-c.done:
	case c.Send <- msg:
	default:
		c.hub.log.Debug("client send buffer full, frame dropped", "user_id", c.UserID)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}

// countdown streams the state of the user's session every tick. The ready
// frame is sent once per session; the countdown never completes a session.
func (c *Client) countdown(ctx context.Context) {
	ticker := time.NewTicker(c.hub.tickEvery)
	defer ticker.Stop()

	var readySent string
	idleSent := false
	for {
		now := c.hub.now()
		sess := c.hub.sessions.ActiveSession(c.UserID)
		switch {
		case sess == nil:
			if !idleSent {
				c.queue(encode(MsgIdle, nil))
				idleSent = true
			}
			readySent = ""
		case sess.Ready(now):
			idleSent = false
			if readySent != sess.ID {
				c.queue(encode(MsgReady, tickPayload(sess, now)))
				readySent = sess.ID
			}
		default:
			idleSent = false
			c.queue(encode(MsgTick, tickPayload(sess, now)))
		}

		select {
		case <-ctx.Done():
			c.close()
			return
		case <-c.done:
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.queue(encode(MsgError, ErrorPayload{Message: "invalid message"}))
			continue
		}
		if msg.Type == MsgPing {
			c.queue(encode(MsgPong, nil))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("write error", "user_id", c.UserID, "error", err)
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
