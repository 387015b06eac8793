package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
)

const (
	writeWait      = 5 * time.Second
	clientQueueLen = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message types exchanged on the session socket.
const (
	msgSnapshot = "snapshot"
	msgError    = "error"
	msgFrame    = "frame"
	msgCommand  = "command"
)

type outbound struct {
	Type    string            `json:"type"`
	Session *session.Snapshot `json:"session,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// inbound is a client message: a pushed frame result or a session command.
type inbound struct {
	Type        string `json:"type"`
	HandPresent bool   `json:"hand_present"`
	api.Command
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// SessionSocket pushes every session snapshot to connected clients and
// accepts frames and commands from them.
type SessionSocket struct {
	ctl         *session.Controller
	frames      api.FramePusher
	clients     map[*wsClient]bool
	mu          sync.RWMutex
	unsubscribe func()
}

// NewSessionSocket creates a SessionSocket subscribed to ctl.
func NewSessionSocket(ctl *session.Controller, frames api.FramePusher) *SessionSocket {
	h := &SessionSocket{
		ctl:     ctl,
		frames:  frames,
		clients: make(map[*wsClient]bool),
	}
	h.unsubscribe = ctl.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn, send: make(chan []byte, clientQueueLen)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)

	defer func() {
		h.mu.Lock()
		if h.clients[c] {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		<-done
	}()

	snap := h.ctl.Snapshot()
	h.sendTo(c, outbound{Type: msgSnapshot, Session: &snap})

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		if err := h.handle(r, msg); err != nil {
			h.sendTo(c, outbound{Type: msgError, Error: err.Error()})
		}
	}
}

func (h *SessionSocket) handle(r *http.Request, msg inbound) error {
	switch msg.Type {
	case msgFrame:
		return api.PushFrame(h.frames, msg.HandPresent)
	case msgCommand:
		return api.Execute(r.Context(), h.ctl, msg.Command)
	default:
		return api.ErrUnknownCommand
	}
}

// broadcast queues snap for every client. Slow clients miss snapshots rather
// than block the controller.
func (h *SessionSocket) broadcast(snap session.Snapshot) {
	data, err := json.Marshal(outbound{Type: msgSnapshot, Session: &snap})
	if err != nil {
		log.Printf("encode snapshot: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *SessionSocket) sendTo(c *wsClient, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *SessionSocket) writeLoop(c *wsClient, done chan<- struct{}) {
	defer close(done)
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Unblock the read loop so the handler can return.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *SessionSocket) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops broadcasting and disconnects every client.
func (h *SessionSocket) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
		delete(h.clients, c)
		close(c.send)
	}
}
