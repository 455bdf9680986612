package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"marketchat/internal/domain/entity"
	"marketchat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Subscription is the part of a store feed a client needs to release it.
type Subscription interface {
	Cancel()
}

// Client is one websocket connection. A user may hold several.
type Client struct {
	ID      string
	UserID  string
	Session *entity.Session

	conn     *websocket.Conn
	compress bool

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool
	subs   map[string]Subscription
}

// NewClient wraps conn. With compress set every frame is a snappy block sent
// as a binary message.
func NewClient(ctx context.Context, session *entity.Session, conn *websocket.Conn, compress bool) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:       uuid.New().String(),
		UserID:   session.UserID,
		Session:  session,
		conn:     conn,
		compress: compress,
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, sendBufferSize),
		subs:     make(map[string]Subscription),
	}
}

// Context is cancelled when the client disconnects.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Push queues msg without blocking. A client that cannot keep up is
// disconnected.
func (c *Client) Push(msg Outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("WebSocket: failed to encode %s frame for client %s: %v", msg.Type, c.ID, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- payload:
	default:
		logger.Warn("WebSocket: send buffer full for client %s (user %s), disconnecting", c.ID, c.UserID)
		c.conn.Close()
	}
}

// Subscribe stores sub under key, cancelling whatever it replaces.
func (c *Client) Subscribe(key string, sub Subscription) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.Cancel()
		return
	}
	prev := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}

// Unsubscribe cancels the subscription under key, if any.
func (c *Client) Unsubscribe(key string) bool {
	c.mu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if ok {
		sub.Cancel()
	}
	return ok
}

// SubscriptionCount reports how many feeds the client holds open.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// shutdown cancels every feed and closes the send queue. Once closed is set
// Push and Subscribe are no-ops, so no callback can reach the channel.
func (c *Client) shutdown() {
	c.cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[string]Subscription)
	close(c.send)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// ReadPump reads commands until the connection fails, then unregisters the
// client. It must run on its own goroutine.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: unexpected close for client %s: %v", c.ID, err)
			}
			return
		}

		if c.compress {
			if data, err = snappy.Decode(nil, data); err != nil {
				c.Push(NewErrorOutbound("", "BAD_REQUEST", "Invalid compressed frame"))
				continue
			}
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Push(NewErrorOutbound("", "BAD_REQUEST", "Invalid message format"))
			continue
		}

		if msg.Type == MessageTypePing {
			c.Push(NewOutbound(MessageTypePong, "", nil))
			continue
		}
		m.dispatch(c, msg)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frameType := websocket.TextMessage
			if c.compress {
				frameType = websocket.BinaryMessage
				payload = snappy.Encode(nil, payload)
			}
			if err := c.conn.WriteMessage(frameType, payload); err != nil {
				logger.Warn("WebSocket: write to client %s failed: %v", c.ID, err)
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
