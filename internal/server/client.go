package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/codecollab/internal/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024

	// Frames buffered per client before it is considered too slow
	sendQueueSize = 256
)

// frame is an outbound event. The name is canonical; it is translated for
// clients that speak the legacy event names when written.
type frame struct {
	Event string
	Data  json.RawMessage
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one websocket connection.
type Client struct {
	id     string
	roomID string
	userID string
	conn   *websocket.Conn
	send   chan frame
	done   chan struct{}
	legacy atomic.Bool
	log    *zap.SugaredLogger

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, roomID, userID string, log *zap.SugaredLogger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		roomID: roomID,
		userID: userID,
		conn:   conn,
		send:   make(chan frame, sendQueueSize),
		done:   make(chan struct{}),
		log: log.With(
			logger.FieldClientID, id,
			logger.FieldRoomID, roomID,
			logger.FieldUserID, userID,
		),
	}
}

// enqueue queues f without blocking. It returns false when the queue is full.
func (c *Client) enqueue(f frame) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// close tears the connection down. The read pump notices and unregisters.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump reads frames until the connection fails and hands each one to
// handle. It must run on exactly one goroutine.
func (c *Client) readPump(handle func(c *Client, data []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
				websocket.CloseNormalClosure,
			) {
				c.log.Warnw("websocket read error", logger.FieldError, err)
			}
			return
		}
		handle(c, data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
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

		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(c.encode(f)); err != nil {
				c.log.Debugw("websocket write error", logger.FieldError, err)
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

func (c *Client) encode(f frame) envelope {
	name := f.Event
	if c.legacy.Load() {
		if old, ok := legacyNames[name]; ok {
			name = old
		}
	}
	data := f.Data
	if data == nil {
		data = json.RawMessage("null")
	}
	return envelope{Event: name, Data: data}
}
