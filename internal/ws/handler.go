package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/almajlis/backend/internal/events"
	"github.com/almajlis/backend/internal/game"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by middleware.WebSocketCORSCheck
	},
}

// Client is one websocket viewer of a match board
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	matchID string
	send    chan []byte
}

// Hub tracks viewers per match and fans snapshots out to them
type Hub struct {
	matchRooms  map[string]map[string]*Client // matchID -> clientID -> Client
	lastVersion map[string]int64              // matchID -> newest snapshot version sent
	mu          sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		matchRooms:  make(map[string]map[string]*Client),
		lastVersion: make(map[string]int64),
	}
}

var _ game.Notifier = (*Hub)(nil)

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, exists := h.matchRooms[c.matchID]
	if !exists {
		room = make(map[string]*Client)
		h.matchRooms[c.matchID] = room
	}
	room[c.id] = c
	log.Printf("[WS] Viewer %s joined match %s (room_size=%d)", c.id, c.matchID, len(room))
}

// unregister removes the client and closes its send channel exactly once
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, exists := h.matchRooms[c.matchID]
	if !exists {
		return
	}
	if cur, ok := room[c.id]; !ok || cur != c {
		return
	}
	delete(room, c.id)
	if len(room) == 0 {
		delete(h.matchRooms, c.matchID)
		delete(h.lastVersion, c.matchID)
	}
	close(c.send)
	log.Printf("[WS] Viewer %s left match %s", c.id, c.matchID)
}

// RoomSize returns how many viewers are watching a match
func (h *Hub) RoomSize(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matchRooms[matchID])
}

// broadcastVersioned sends a board snapshot unless a newer one for the same
// match has already gone out. Snapshots with equal versions are all delivered.
func (h *Hub) broadcastVersioned(matchID string, version int64, data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.matchRooms[matchID]
	if len(room) == 0 {
		return false
	}
	if last, seen := h.lastVersion[matchID]; seen && version < last {
		log.Debugf("[WS] stale snapshot v%d for match %s (last v%d), dropped", version, matchID, last)
		return false
	}
	h.lastVersion[matchID] = version
	for _, client := range room {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Send buffer full for viewer %s in match %s, dropping message", client.id, matchID)
		}
	}
	return true
}

// Publish implements game.Notifier for single-instance deployments
func (h *Hub) Publish(ctx context.Context, board *game.Board) error {
	ev := events.NewMatchEvent(board)
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.broadcastVersioned(ev.MatchID, ev.Version, data)
	return nil
}

// enqueue queues a message for this client only
func (c *Client) enqueue(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, live := c.hub.matchRooms[c.matchID][c.id]; !live {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for viewer %s, dropping message", c.id)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.enqueue(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// writePump writes messages to the WebSocket connection
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for viewer %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for viewer %s: %v", c.id, err)
				return
			}
		}
	}
}

// WSMessage is an inbound viewer message
type WSMessage struct {
	Type string `json:"type"`
}

// readPump drains the connection. A {"type":"sync"} message asks for a fresh
// snapshot; everything else is ignored.
func (c *Client) readPump(snapshot func() (*game.Board, error)) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for viewer %s: %v", c.id, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		if msg.Type != "sync" {
			continue
		}
		board, err := snapshot()
		if err != nil {
			c.sendError("board unavailable")
			continue
		}
		c.enqueue(events.NewMatchEvent(board))
	}
}
