// ws/hub.go
package ws

import (
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"callalert-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// envelope is the wire frame sent to observers.
type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	conn   *websocket.Conn
	userID uuid.UUID
	phone  string
	send   chan envelope
}

// Hub owns the live observer connections. It is the scheduler's
// eligibility source (a user is eligible while at least one of their
// connections is open), the result broadcaster, and the target index for
// call-status webhooks. It caches the latest published snapshot so late
// joiners see the current state immediately.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	snapshot []models.ReminderResult

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		snapshot: []models.ReminderResult{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish replaces the cached snapshot and fans it out to every observer.
// Sends are non-blocking: a slow consumer drops the frame rather than
// stalling the polling loop.
func (h *Hub) Publish(results []models.ReminderResult) {
	if results == nil {
		results = []models.ReminderResult{}
	}

	h.mu.Lock()
	h.snapshot = results
	h.mu.Unlock()

	h.broadcast(envelope{Type: "newJobResult", Data: results}, "")
}

// Snapshot returns the latest published result list; before the first
// cycle completes it is the empty list.
func (h *Hub) Snapshot() []models.ReminderResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.ReminderResult, len(h.snapshot))
	copy(out, h.snapshot)
	return out
}

// EligibleUserIDs returns the distinct users with a live connection, in a
// deterministic order.
func (h *Hub) EligibleUserIDs() []uuid.UUID {
	h.mu.RLock()
	seen := make(map[uuid.UUID]struct{}, len(h.clients))
	for c := range h.clients {
		seen[c.userID] = struct{}{}
	}
	h.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// NotifyCallStatus forwards a provider status callback to the observers
// registered with the destination number. Returns how many were targeted.
func (h *Hub) NotifyCallStatus(update models.CallStatusUpdate) int {
	return h.broadcast(envelope{Type: "call-status-update", Data: update}, update.To)
}

// broadcast sends the frame to every client, or only to clients whose
// registered phone matches when phone is non-empty. Sending under the
// read lock is safe because channels are only closed under the write
// lock, and sends never block.
func (h *Hub) broadcast(msg envelope, phone string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if phone != "" && c.phone != phone {
			continue
		}
		n++
		select {
		case c.send <- msg:
		default:
			log.Printf("ws: dropping frame for slow client (user %s)", c.userID)
		}
	}
	return n
}

// ServeWS upgrades the request to a websocket. Observers identify
// themselves with a userId (required) and phoneNumber (optional) query
// parameter and immediately receive the current snapshot.
func (h *Hub) ServeWS(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid userId query parameter required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	cl := &client{
		conn:   conn,
		userID: userID,
		phone:  c.Query("phoneNumber"),
		send:   make(chan envelope, 8),
	}
	cl.send <- envelope{Type: "newJobResult", Data: h.Snapshot()}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	log.Printf("ws: client connected (user %s)", userID)

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) writePump(cl *client) {
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(msg); err != nil {
			break
		}
	}
	cl.conn.Close()
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		close(cl.send)
		h.mu.Unlock()
		log.Printf("ws: client disconnected (user %s)", cl.userID)
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
