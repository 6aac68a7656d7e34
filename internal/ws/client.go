package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guvercin/messaging-backend/internal/common"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 << 20 // file payload frames ride the same connection
)

// Session is a live connection as the rest of the system sees it: a
// username bound to a transport that accepts synchronous text sends.
type Session interface {
	Username() string
	SendText(data []byte) error
	Close()
}

// Client wraps one websocket connection. Writes are serialized by a
// mutex so a send blocks only the calling handler, never the registry.
type Client struct {
	conn        *websocket.Conn
	username    string
	connectedAt time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection for a username.
func NewClient(conn *websocket.Conn, username string) *Client {
	c := &Client{
		conn:        conn,
		username:    username,
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	return c
}

// Username returns the bound username.
func (c *Client) Username() string {
	return c.username
}

// ConnectedAt returns when the session was accepted.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// ReadMessage blocks until the next frame arrives or the transport
// closes. Each received frame extends the read deadline.
func (c *Client) ReadMessage() (int, []byte, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	return msgType, data, nil
}

// SendText writes one text frame. Failures are reported as
// common.ErrTransport so callers can branch to the notification
// fallback deterministically.
func (c *Client) SendText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	return nil
}

// SendJSON marshals v and sends it as one text frame.
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendText(data)
}

// KeepAlive pings the peer until the session closes. WriteControl is
// safe to call concurrently with SendText.
func (c *Client) KeepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close shuts the transport down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
