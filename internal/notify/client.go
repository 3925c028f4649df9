package notify

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

// Client is one websocket connection attached to the hub.
type Client struct {
	conn     *websocket.Conn
	Send     chan []byte
	memberID string
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn, Send: make(chan []byte, sendBuffer)}
}

// Run services the connection until either side closes it, then detaches
// from the hub.
func (c *Client) Run(hub *Hub) {
	done := make(chan struct{})
	go c.readPump(done)
	c.writePump(done)
	hub.Leave(c)
	_ = c.conn.Close()
}

// readPump discards inbound frames; the socket is push-only. It exists to
// process control frames and to notice the peer going away.
func (c *Client) readPump(done chan<- struct{}) {
	defer close(done)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
