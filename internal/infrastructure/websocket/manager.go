package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"marketchat/pkg/logger"
)

// Dispatcher handles every client command other than ping.
type Dispatcher func(c *Client, msg Inbound)

// Manager tracks live connections per user and tears them down on
// disconnect.
type Manager struct {
	clients    map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	dispatcher Dispatcher
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewManager(dispatcher Dispatcher) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		dispatcher: dispatcher,
		done:       make(chan struct{}),
	}
}

// SetDispatcher replaces the command handler. Call it before Start.
func (m *Manager) SetDispatcher(dispatcher Dispatcher) {
	m.dispatcher = dispatcher
}

// Start runs the registration loop until ctx is done, then closes every
// remaining client.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				if m.clients[client.UserID] == nil {
					m.clients[client.UserID] = make(map[*Client]struct{})
				}
				m.clients[client.UserID][client] = struct{}{}
				m.mutex.Unlock()
				logger.L().Debug("websocket client registered",
					zap.String("client_id", client.ID),
					zap.String("user_id", client.UserID),
					zap.Int("connections", m.ConnectionCount(client.UserID)))

			case client := <-m.Unregister:
				feeds := client.SubscriptionCount()
				m.remove(client)
				logger.L().Debug("websocket client unregistered",
					zap.String("client_id", client.ID),
					zap.String("user_id", client.UserID),
					zap.Int("cancelled_feeds", feeds),
					zap.Int("connections", m.ConnectionCount(client.UserID)))

			case <-ctx.Done():
				close(m.done)
				m.closeAll()
				return
			}
		}
	}()
}

// Add registers client. It reports false once the manager has stopped.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

// unregister hands client back to the loop, or shuts it down directly once
// the loop has stopped.
func (m *Manager) unregister(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
		client.shutdown()
	}
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	if set, ok := m.clients[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(m.clients, client.UserID)
		}
	}
	m.mutex.Unlock()

	client.shutdown()
}

func (m *Manager) closeAll() {
	m.mutex.Lock()
	var all []*Client
	for _, set := range m.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	m.clients = make(map[string]map[*Client]struct{})
	m.mutex.Unlock()

	for _, c := range all {
		c.shutdown()
		c.conn.Close()
	}
}

// ConnectionCount reports how many connections userID has open.
func (m *Manager) ConnectionCount(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID])
}

func (m *Manager) dispatch(c *Client, msg Inbound) {
	if m.dispatcher == nil {
		c.Push(NewErrorOutbound(msg.ChatID, "BAD_REQUEST", "Unknown message type"))
		return
	}
	m.dispatcher(c, msg)
}
