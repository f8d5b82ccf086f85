// Package web serves the clock face, its websocket feed, a status page and
// a small control API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/sweeney/magic-clock/internal/logic"
	"github.com/sweeney/magic-clock/internal/settings"
	"github.com/sweeney/magic-clock/internal/status"
	"github.com/sweeney/magic-clock/internal/trigger"
)

// Server serves the face and status over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	hub        *Hub
	inputs     chan<- trigger.Input
	metrics    http.Handler
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithInputs sets the channel that websocket messages and API calls are
// delivered on. Without it the server is read-only.
func WithInputs(ch chan<- trigger.Input) Option {
	return func(s *Server) { s.inputs = ch }
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock sets the time source used to stamp browser input.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{
		tracker: tracker,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.inputs, s.now, s.logger)

	router := httprouter.New()
	router.GET("/", s.handleFace)
	router.GET("/index.html", s.handleFace)
	router.GET("/status", s.handleStatus)
	router.GET("/index.json", s.handleJSON)
	router.GET("/snapshot.png", s.handleSnapshot)
	router.Handler(http.MethodGet, "/ws", s.hub)
	if s.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.metrics)
	}

	router.POST("/api/command/:name", s.handleCommand)
	router.POST("/api/menu/:action", s.handleMenu)
	router.POST("/api/key/:key", s.handleKey)
	router.GET("/api/settings", s.handleGetSettings)
	router.PUT("/api/settings", s.handlePutSettings)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the websocket hub, which is also a render sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown disconnects websocket clients and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleFace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderFace(w, s.tracker.Snapshot()); err != nil {
		s.logger.Error("render face", slog.Any("error", err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderStatus(w, s.tracker.Snapshot()); err != nil {
		s.logger.Error("render status", slog.Any("error", err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := WritePNG(w, s.tracker.Snapshot()); err != nil {
		s.logger.Error("write snapshot", slog.Any("error", err))
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, ok := trigger.ParseCommand(ps.ByName("name"))
	if !ok {
		http.Error(w, "unknown command", http.StatusNotFound)
		return
	}
	s.deliver(w, r, trigger.CommandInput{Command: c})
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	a, ok := trigger.ParseMenuAction(ps.ByName("action"))
	if !ok {
		http.Error(w, "unknown menu action", http.StatusNotFound)
		return
	}
	s.deliver(w, r, trigger.MenuInput{Action: a})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	k, ok := logic.ParseKey(ps.ByName("key"))
	if !ok {
		http.Error(w, "unknown key", http.StatusNotFound)
		return
	}
	s.deliver(w, r, trigger.KeyInput{Key: k})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(s.tracker.Snapshot().Settings.Document(), "", "  ")
	w.Write(data)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var doc settings.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		http.Error(w, "bad settings: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.deliver(w, r, trigger.SettingsInput{Document: doc})
}

// deliver hands in to the event loop. The change is applied asynchronously,
// so the response is 202 Accepted. Once the server is shutting down the
// loop may never read again, so the request is refused instead.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, in trigger.Input) {
	if s.inputs == nil {
		http.Error(w, "read-only", http.StatusServiceUnavailable)
		return
	}
	select {
	case s.inputs <- in:
		w.WriteHeader(http.StatusAccepted)
	case <-s.hub.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
}
