// ABOUTME: WebSocket hub streaming live snapshots and fired notifications
// ABOUTME: Each client follows its own user's relationships, activities and reminders
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

// Message types sent to clients.
const (
	TypeSnapshot     = "snapshot"
	TypeNotification = "notification"
)

// Event is the envelope written to WebSocket clients.
type Event struct {
	Type       string `json:"type"`
	Collection string `json:"collection,omitempty"`
	Data       any    `json:"data"`
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub tracks connected clients. It is a notify.Sink: fired notifications
// go to every client of the reminder's owner.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	websocketClients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		websocketClients.Dec()
	}
	h.mu.Unlock()
}

// Deliver implements notify.Sink.
func (h *Hub) Deliver(_ context.Context, n notify.Notification) error {
	data, err := json.Marshal(Event{Type: TypeNotification, Data: n})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if n.Message.UserID != "" && c.userID != n.Message.UserID {
			continue
		}
		c.enqueue(data)
	}
	return nil
}

// enqueue drops the message when the client is not keeping up. Snapshots
// are complete, so the next one repairs any gap.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn("websocket client buffer full", "user", c.userID)
	}
}

func (c *client) sendEvent(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Warn("encode websocket event", "err", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.hub.clients[c] {
		c.enqueue(data)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.ids.UserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade", "err", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer), userID: userID}
	s.hub.register(c)

	// The request context ends with the handler; subscriptions live until
	// the read pump sees the connection close.
	ctx, cancel := context.WithCancel(identity.WithUser(context.Background(), userID))
	unsubscribe, err := s.subscribe(ctx, c)
	if err != nil {
		log.Warn("websocket subscribe", "err", err, "user", userID)
	}

	go c.writePump()
	go func() {
		c.readPump()
		for _, stop := range unsubscribe {
			stop()
		}
		cancel()
		s.hub.unregister(c)
	}()
}

// subscribe streams every collection to c and returns the unsubscribe funcs.
func (s *Server) subscribe(ctx context.Context, c *client) ([]func(), error) {
	var stops []func()
	stop, err := s.svc.Relationships.Subscribe(ctx, func(rels []*models.Relationship) {
		c.sendEvent(Event{Type: TypeSnapshot, Collection: "relationships", Data: nonNilSlice(rels)})
	})
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)

	stop, err = s.svc.Activities.Subscribe(ctx, crm.ActivityFilter{}, func(acts []*models.Activity) {
		c.sendEvent(Event{Type: TypeSnapshot, Collection: "activities", Data: nonNilSlice(acts)})
	})
	if err != nil {
		return stops, err
	}
	stops = append(stops, stop)

	stop, err = s.svc.Reminders.Subscribe(ctx, func(rems []*models.Reminder) {
		c.sendEvent(Event{Type: TypeSnapshot, Collection: "reminders", Data: nonNilSlice(rems)})
	})
	if err != nil {
		return stops, err
	}
	return append(stops, stop), nil
}

// readPump discards client messages and returns when the connection closes.
func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed", "user", c.userID, "err", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
