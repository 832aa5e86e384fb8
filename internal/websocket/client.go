package websocket

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one live connection belonging to an owner. An owner may
// hold several at once (multiple tabs or devices).
type Client struct {
	ID    string
	Owner string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, owner string) *Client {
	return &Client{
		ID:    uuid.NewString(),
		Owner: owner,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, 256),
	}
}

// ReadPump drains inbound frames until the peer goes away. Clients
// only listen; anything they send is discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
