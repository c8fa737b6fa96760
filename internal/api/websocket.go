package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"coop-platformer/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait
	maxMessageSize = 4096                // Maximum message size allowed from peer

	sendQueueSize = 64
)

// EventHandler consumes parsed client envelopes. Implemented by game.Manager.
type EventHandler interface {
	HandleEvent(c game.Conn, event string, data map[string]interface{})
	HandleDisconnect(c game.Conn)
}

// envelope is the wire frame in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one WebSocket connection. It implements game.Conn: the game core
// sends through the buffered queue and stores its (room, player) binding here.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	ip   string

	mu       sync.Mutex
	roomCode string
	playerID string

	closeOnce sync.Once
}

// Send marshals one event envelope onto the outbound queue. Snapshot frames
// are dropped when the peer cannot keep up; a slow consumer never blocks the
// room that emitted the event.
func (c *Client) Send(event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
		IncrementWSMessages()
	default:
		if event != game.EventGameState {
			log.Printf("⚠️ Dropped %s frame to slow client %s", event, c.ip)
		}
	}
}

// Bind stores the (room, player) attachment. Empty strings clear it.
func (c *Client) Bind(roomCode, playerID string) {
	c.mu.Lock()
	c.roomCode = roomCode
	c.playerID = playerID
	c.mu.Unlock()
}

// Binding returns the current attachment.
func (c *Client) Binding() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.playerID
}

// close signals the write pump to finish. The send channel is never closed:
// a room goroutine may still hold this Conn and call Send after teardown.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Hub manages all WebSocket connections and their room subscriptions, and
// implements game.Transport for room broadcast fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	handler  EventHandler
	upgrader websocket.Upgrader

	// Connection limiting per IP
	wsLimiter *WebSocketRateLimiter
}

// NewHub creates a hub enforcing the given origin policy on upgrade.
func NewHub(origins *OriginPolicy) *Hub {
	h := &Hub{
		clients:   make(map[*Client]struct{}),
		rooms:     make(map[string]map[*Client]struct{}),
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allow(origin) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// SetHandler wires the inbound event consumer. Must be called before any
// connection is accepted.
func (h *Hub) SetHandler(handler EventHandler) { h.handler = handler }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Join subscribes a connection to a room's broadcasts.
func (h *Hub) Join(roomCode string, conn game.Conn) {
	c, ok := conn.(*Client)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomCode]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[roomCode] = set
	}
	set[c] = struct{}{}
}

// Leave unsubscribes a connection from a room's broadcasts.
func (h *Hub) Leave(roomCode string, conn game.Conn) {
	c, ok := conn.(*Client)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[roomCode]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, roomCode)
		}
	}
}

// Broadcast fans an event out to every subscriber of a room. Fire-and-forget:
// per-client queues absorb slowness and drop stale snapshots.
func (h *Hub) Broadcast(roomCode, event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomCode] {
		select {
		case c.send <- payload:
			IncrementWSMessages()
		default:
			// Queue full: drop. Snapshots are re-emitted every tick.
		}
	}
}

// HandleWebSocket upgrades an HTTP request with DoS protection and runs the
// connection's read/write pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
		ip:   ip,
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("📱 Client connected from %s (%d total)", c.ip, count)
	UpdateWSConnections(count)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for code, set := range h.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, code)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.wsLimiter.Release(c.ip)
	c.close()

	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

// readPump parses inbound envelopes and hands them to the event handler.
// Runs until the peer goes away; the disconnect is then surfaced to the game
// core exactly once.
func (c *Client) readPump() {
	defer func() {
		if c.hub.handler != nil {
			c.hub.handler.HandleDisconnect(c)
		}
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			continue // malformed frames never reach the game core
		}
		data := make(map[string]interface{})
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				continue
			}
		}
		if c.hub.handler != nil {
			c.hub.handler.HandleEvent(c, env.Event, data)
		}
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
