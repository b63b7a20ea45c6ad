package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gambler/settlement/domain/errs"
	"gambler/settlement/domain/events"
	"gambler/settlement/infrastructure/observability"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// PushMessage is what a player's connections receive for each of their events
type PushMessage struct {
	Type string       `json:"type"`
	Data events.Event `json:"data"`
}

type client struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub pushes domain events to the WebSocket connections of the player they concern
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// playerID -> set of clients
	clients map[string]map[*client]struct{}
}

// NewHub creates a hub. allowOrigin decides which browser origins may connect.
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		clients:  make(map[string]map[*client]struct{}),
	}
}

// HandleWS upgrades GET /ws?playerId= and streams the player's events until they disconnect
func (h *Hub) HandleWS(c *gin.Context) {
	playerID := c.Query("playerId")
	if playerID == "" {
		respondError(c, errs.New(errs.CodeInvalidRequest, "playerId is required"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	cl := &client{playerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(cl)
	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl.playerID]; !ok {
		h.clients[cl.playerID] = make(map[*client]struct{})
	}
	h.clients[cl.playerID][cl] = struct{}{}
	observability.WebSocketConnections.Inc()
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[cl.playerID]
	if !ok {
		return
	}
	if _, ok := set[cl]; !ok {
		return
	}
	delete(set, cl)
	if len(set) == 0 {
		delete(h.clients, cl.playerID)
	}
	close(cl.send)
	observability.WebSocketConnections.Dec()
}

// readPump only services pings and close frames; clients send nothing else
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()

	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Debug("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleEvent is a local event handler that pushes player-scoped events.
// Slow connections drop messages rather than block the publisher.
func (h *Hub) HandleEvent(ctx context.Context, event events.Event) error {
	scoped, ok := event.(events.PlayerScoped)
	if !ok {
		return nil
	}

	msg, err := json.Marshal(PushMessage{Type: string(event.Type()), Data: event})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients[scoped.Player()] {
		select {
		case cl.send <- msg:
		default:
			log.WithFields(log.Fields{
				"playerId":  cl.playerID,
				"eventType": event.Type(),
			}).Warn("Dropping push to slow WebSocket client")
		}
	}
	return nil
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
