package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kimhsiao/memoria/internal/logging"
	"github.com/kimhsiao/memoria/internal/uuid"
)

const (
	sendBuffer   = 256
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// The event socket lives in the user's runtime dir with mode 0600, so any
// peer that reaches it is the owning user.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket subscriber.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu            sync.Mutex
	subscriptions map[string]bool
}

// wants reports whether the client receives eventType. A client with no
// subscriptions receives everything.
func (c *client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

type message struct {
	eventType string
	payload   []byte
}

// Hub maintains subscribers and fans out events to them.
type Hub struct {
	clients    map[string]*client
	broadcast  chan message
	unregister chan *client
	stopCh     chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	now        func() time.Time
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan message, sendBuffer),
		unregister: make(chan *client),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		now:        time.Now,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.stopCh:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("event subscriber disconnected", map[string]interface{}{"client": uuid.Short(c.id), "total": total})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if !c.wants(msg.eventType) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// Slow subscriber: drop it rather than stall the daemon.
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements Publisher. It never blocks; when the broadcast queue
// is full the event is dropped.
func (h *Hub) Publish(eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(Envelope{Type: eventType, Data: data, Timestamp: h.now().Unix()})
	if err != nil {
		logging.Warn("failed to marshal event", map[string]interface{}{"type": eventType, "error": err.Error()})
		return
	}

	select {
	case <-h.stopCh:
	case h.broadcast <- message{eventType: eventType, payload: payload}:
	default:
		logging.Warn("event queue full, dropping event", map[string]interface{}{"type": eventType})
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and stops the dispatch loop.
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{
		id:            uuid.NewPrefixed("ws"),
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		hub:           h,
		subscriptions: make(map[string]bool),
	}

	h.mu.Lock()
	select {
	case <-h.stopCh:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	logging.Debug("event subscriber connected", map[string]interface{}{"client": uuid.Short(c.id), "total": total})

	go c.writePump()
	go c.readPump()
}

// readPump handles subscribe, unsubscribe and ping actions from the client.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopCh:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("event subscriber read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var msg struct {
			Action string   `json:"action"`
			Events []string `json:"events"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				c.subscriptions[e] = true
			}
			c.mu.Unlock()
			c.reply(map[string]interface{}{"action": "subscribe_ack", "subscribed": msg.Events})
		case "unsubscribe":
			c.mu.Lock()
			for _, e := range msg.Events {
				delete(c.subscriptions, e)
			}
			c.mu.Unlock()
		case "ping":
			c.reply(map[string]interface{}{"action": "pong"})
		}
	}
}

// reply queues a direct response; it is dropped if the client is gone or full.
func (c *client) reply(body map[string]interface{}) {
	body["timestamp"] = c.hub.now().Unix()
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

var _ Publisher = (*Hub)(nil)
var _ Publisher = Nop{}
