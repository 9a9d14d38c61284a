package ws

import (
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single frame write. A subscriber that cannot drain
// within it is dropped so it never stalls the hub's delivery loop.
const writeTimeout = 5 * time.Second

// Client represents a websocket client connection.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewClient constructs a client wrapper.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, log: logger}
}

// Send writes a message to the websocket connection. Any failure, including
// a write-deadline expiry, closes the connection and reports the error so
// the hub unregisters the subscriber.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
