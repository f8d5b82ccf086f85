package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/trigger"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxMessage   = 4096
	clientBuffer = 16
)

// Hub fans frames out to websocket clients and feeds their touch, motion
// and menu messages to the event loop.
type Hub struct {
	inputs chan<- trigger.Input
	now    func() time.Time
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	done    chan struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub that delivers decoded client messages on inputs.
// A nil inputs channel makes the feed read-only.
func NewHub(inputs chan<- trigger.Input, now func() time.Time, logger *slog.Logger) *Hub {
	return &Hub{
		inputs:  inputs,
		now:     now,
		logger:  logger,
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// EventMessage is sent to clients when controller events happen.
type EventMessage struct {
	Events []EventJSON     `json:"events"`
	Menu   []MenuJSON      `json:"menu"`
	Status json.RawMessage `json:"status"`
}

// EventJSON is one controller event.
type EventJSON struct {
	Event    string `json:"event"`
	Phase    string `json:"phase"`
	OffsetMs int64  `json:"offset_ms"`
}

// MenuJSON is one settings menu entry with its current label.
type MenuJSON struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Render sends the frame to every client. Frames are dropped for clients
// that are not keeping up.
func (h *Hub) Render(snap status.Snapshot) {
	if h.Clients() == 0 {
		return
	}
	h.broadcast(status.FormatCompact(snap))
}

// Notify sends events along with the menu labels for the current settings.
func (h *Hub) Notify(snap status.Snapshot, events []logic.Event) {
	if len(events) == 0 || h.Clients() == 0 {
		return
	}
	h.broadcast(formatEvents(snap, events))
}

func formatEvents(snap status.Snapshot, events []logic.Event) []byte {
	msg := EventMessage{Status: json.RawMessage(statusInner(snap))}
	for _, e := range events {
		msg.Events = append(msg.Events, EventJSON{
			Event:    string(e.Type),
			Phase:    e.Phase.String(),
			OffsetMs: e.Offset.Milliseconds(),
		})
	}
	for _, a := range trigger.MenuActions {
		msg.Menu = append(msg.Menu, MenuJSON{Name: a.String(), Label: a.Label(snap.Settings)})
	}
	data, _ := json.Marshal(msg)
	return data
}

// statusInner extracts the inner status object from the compact envelope.
func statusInner(snap status.Snapshot) []byte {
	var env struct {
		Status json.RawMessage `json:"status"`
	}
	json.Unmarshal(status.FormatCompact(snap), &env)
	return env.Status
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the client until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("websocket client connected", slog.String("remote", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read", slog.Any("error", err))
			}
			return
		}
		// Any client traffic counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if h.inputs == nil {
			continue
		}
		in, err := DecodeInput(data, h.now())
		if err != nil {
			h.logger.Debug("websocket message ignored", slog.Any("error", err))
			continue
		}
		select {
		case h.inputs <- in:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Close disconnects every client and stops delivering inputs.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
