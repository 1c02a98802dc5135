package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64 KB
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub     *Hub
	gateway Gateway

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan *Message

	// Identity from validated JWT claims
	UserID   string
	Username string
	Role     string

	// ctx is cancelled on disconnect. It bounds read-path calls made on
	// behalf of this connection; write-path calls deliberately do not use
	// it, because an accepted write must run to completion regardless of
	// the triggering connection's lifetime.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new client
func NewClient(hub *Hub, gateway Gateway, conn *websocket.Conn, userID, username, role string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:      hub,
		gateway:  gateway,
		conn:     conn,
		send:     make(chan *Message, 256),
		UserID:   userID,
		Username: username,
		Role:     role,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// readPump pumps messages from the websocket connection to the dispatcher
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var req clientRequest
		if err := json.Unmarshal(messageBytes, &req); err != nil {
			c.sendError("", "malformed request")
			continue
		}

		// Each call is handled independently; a failure becomes an error
		// event to this caller and never tears down the connection.
		c.dispatch(&req)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			jsonData, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	c.readPump()
}

// Send queues a message for this client, dropping it if the buffer is full.
func (c *Client) Send(message *Message) {
	select {
	case c.send <- message:
	default:
		log.Printf("Send buffer full, dropping direct message for user %s", c.UserID)
	}
}

func (c *Client) sendError(method, message string) {
	c.Send(&Message{
		Type:    EventError,
		Payload: ErrorPayload{Method: method, Message: message},
	})
}
