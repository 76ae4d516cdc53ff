package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/guidoenr/gainbridge/internal/bridge"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	maxMessage = 4096
)

// Backend is the host state the server exposes to UIs.
type Backend interface {
	// Snapshot returns the messages a newly connected UI needs to reach the
	// current state: properties and value of every parameter.
	Snapshot() []bridge.Message
	Parameters() []bridge.ParameterInfo
	SetNormalised(id string, v float64) error
	SetBool(id string, v bool) error
	Resource(name string) (data []byte, contentType string, ok bool)
}

type Server struct {
	mu        sync.RWMutex
	backend   Backend
	clients   map[*websocketClient]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
	log       *slog.Logger
	started   time.Time
	sent      uint64
	dropped   atomic.Uint64

	// parameter notifications queue here without bound; wake nudges Run
	pendingMu sync.Mutex
	pending   [][]byte
	wake      chan struct{}
}

type websocketClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

type StatusResponse struct {
	Clients    int      `json:"clients"`
	Uptime     string   `json:"uptime"`
	Broadcasts uint64   `json:"broadcasts"`
	Dropped    uint64   `json:"dropped"`
	Parameters []string `json:"parameters"`
}

func NewServer(backend Backend, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		backend:   backend,
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		wake:      make(chan struct{}, 1),
		log:       log,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			// the UI is a local process or webview, not an arbitrary site
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes. Broadcasting only reaches clients while
// Run is active.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/parameters", s.handleParameters)
	mux.HandleFunc("/resources/", s.handleResource)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run drives the broadcast loop until ctx is done.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			s.mu.Unlock()
			return
		case message := <-s.broadcast:
			s.fanOut(message)
		case <-s.wake:
			for _, message := range s.takePending() {
				s.fanOut(message)
			}
		}
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("server starting", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Broadcast queues a message for every connected UI without blocking. Event
// signals are dropped when their queue is full, since the next one
// supersedes them. Parameter notifications are always kept.
func (s *Server) Broadcast(m bridge.Message) {
	data, err := json.Marshal(m)
	if err != nil {
		s.log.Error("encode broadcast", "type", m.Type, "error", err)
		return
	}
	if m.Type != bridge.TypeEvent {
		s.pendingMu.Lock()
		s.pending = append(s.pending, data)
		s.pendingMu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
		return
	}
	select {
	case s.broadcast <- data:
	default:
		s.dropped.Add(1)
	}
}

func (s *Server) takePending() [][]byte {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *Server) fanOut(message []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			s.log.Warn("client too slow, disconnecting", "client", client.id)
			close(client.send)
			delete(s.clients, client)
		}
	}
}

// ClientCount reports the number of connected UIs.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := StatusResponse{
		Clients:    len(s.clients),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Broadcasts: s.sent,
		Dropped:    s.dropped.Load(),
	}
	s.mu.RUnlock()
	for _, p := range s.backend.Parameters() {
		status.Parameters = append(status.Parameters, p.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.backend.Parameters())
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/resources/")
	data, contentType, ok := s.backend.Resource(name)
	if !ok {
		s.log.Warn("resource not found", "resource", name)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade", "error", err)
		return
	}

	client := &websocketClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	// Register and queue the snapshot under the lock so every later
	// broadcast is delivered after it.
	s.mu.Lock()
	s.clients[client] = true
	for _, m := range s.backend.Snapshot() {
		data, err := json.Marshal(m)
		if err != nil {
			s.log.Error("encode snapshot", "type", m.Type, "id", m.ID, "error", err)
			continue
		}
		select {
		case client.send <- data:
		default:
			s.log.Warn("snapshot larger than client buffer", "client", client.id)
		}
	}
	s.mu.Unlock()
	s.log.Info("ui connected", "client", client.id, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			close(c.send)
		}
		c.server.mu.Unlock()
		c.conn.Close()
		c.server.log.Info("ui disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msgs, err := bridge.DecodeFrame(frame)
		if err != nil {
			c.server.log.Warn("malformed frame from ui", "client", c.id, "error", err)
		}
		for _, m := range msgs {
			c.server.apply(c, m)
		}
	}
}

func (s *Server) apply(c *websocketClient, m bridge.Message) {
	if err := m.Validate(); err != nil {
		s.log.Warn("ignoring ui message", "client", c.id, "error", err)
		return
	}
	var err error
	switch m.Type {
	case bridge.TypeSetNormalisedValue:
		err = s.backend.SetNormalised(m.ID, *m.Value)
	case bridge.TypeSetValue:
		err = s.backend.SetBool(m.ID, *m.Bool)
	default:
		s.log.Warn("unexpected message from ui", "client", c.id, "type", m.Type)
		return
	}
	if err != nil {
		s.log.Warn("parameter update rejected", "client", c.id, "parameter", m.ID, "error", err)
	}
}

func (c *websocketClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
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
