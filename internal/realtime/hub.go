package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collegedesk/collegedesk/pkg/logger"
	"github.com/collegedesk/collegedesk/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB

	defaultBufferSize = 64
)

// Event names emitted over the push channel, one per triggering action.
const (
	EventChatMessage       = "chat.message"
	EventQueryCreated      = "query.created"
	EventLinkQueryCreated  = "linkquery.created"
	EventCircularPublished = "circular.published"
	EventNotification      = "notification.created"
)

// Message represents a JSON payload delivered to a room's subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
}

// Hub delivers ephemeral events to connected clients. Each client is placed in
// the room matching its authenticated identity, and events are emitted to that
// room only. Delivery is at-most-once with no replay; the notification store
// is the durable fallback fetched on reconnect.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and joins the client to
// the room named after its authenticated identity. The room is assigned
// server-side; clients cannot subscribe to someone else's events.
func (h *Hub) Serve(room string, w http.ResponseWriter, r *http.Request) {
	room = normalizeRoom(room)
	if room == "" {
		http.Error(w, "missing identity", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, room)
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// EmitToRoom delivers a message to every connection in the named room.
func (h *Hub) EmitToRoom(room string, message Message) {
	room = normalizeRoom(room)
	if room == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		h.enqueue(client, message)
	}
}

// EmitToRooms delivers a message to each of the supplied rooms.
func (h *Hub) EmitToRooms(rooms []string, message Message) {
	for _, room := range rooms {
		h.EmitToRoom(room, message)
	}
}

// RoomSize reports the number of connections currently in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[normalizeRoom(room)])
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.room] == nil {
		h.rooms[client.room] = make(map[*connection]struct{})
	}
	h.rooms[client.room][client] = struct{}{}
	metrics.RealtimeClients.Inc()
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.rooms[client.room]
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	metrics.RealtimeClients.Dec()
}

func (h *Hub) enqueue(client *connection, message Message) {
	select {
	case client.send <- message:
	default:
		h.log.Warn("dropping backpressure client", zap.String("room", client.room))
		client.close()
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	room   string
	send   chan Message
	once   sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn, room string) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		room:   room,
		send:   make(chan Message, defaultBufferSize),
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("room", c.room), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(ctrl.Action), "ping") {
			c.send <- Message{Event: "pong"}
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}
