// Package api exposes the panel's queries, commands and event stream to a
// local UI over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/journal"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

var log = logging.L("api")

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 64
)

var upgrader = websocket.Upgrader{
	// The server only listens on loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Inventory is the device side of the panel.
type Inventory interface {
	ListDevices(ctx context.Context) []adb.Device
	Specs(ctx context.Context, id string) (adb.Specs, bool)
	ConnectWifi(ctx context.Context, id string) adb.Result
	Disconnect(ctx context.Context, id string) adb.Result
}

// Sessions is the mirroring side of the panel.
type Sessions interface {
	Start(ctx context.Context, deviceID string, opts mirror.Options) mirror.Result
	Stop(userInitiated bool) mirror.Result
	Status() mirror.Status
	LastSession() (mirror.LastSession, bool)
	ProcessStats() (mirror.Stats, bool)
}

// Snapshotter exposes the device monitor's last snapshot.
type Snapshotter interface {
	CurrentDevices() []adb.Device
}

// ReconnectCanceller drops a pending auto-reconnect.
type ReconnectCanceller interface {
	Cancel()
}

// Subscriber is the event source streamed to WebSocket clients.
type Subscriber interface {
	Subscribe(events.Handler) (unsubscribe func())
}

// Config wires a Server. Inventory, Sessions and Events are required.
type Config struct {
	Inventory Inventory
	Sessions  Sessions
	Monitor   Snapshotter
	Policy    ReconnectCanceller
	Events    Subscriber
	Health    *health.Monitor
	Presets   *mirror.PresetBook
	Journal   *journal.Journal
	// Defaults returns the configured default session options.
	Defaults func() mirror.Options
}

// Server serves the panel API.
type Server struct {
	inv      Inventory
	sessions Sessions
	monitor  Snapshotter
	policy   ReconnectCanceller
	bus      Subscriber
	health   *health.Monitor
	presets  *mirror.PresetBook
	journal  *journal.Journal
	defaults func() mirror.Options

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

type client struct {
	conn        *websocket.Conn
	send        chan []byte
	unsubscribe func()

	mu     sync.Mutex
	closed bool
}

// enqueue hands data to the write pump, dropping it when the client is
// gone or not keeping up.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		inv:      cfg.Inventory,
		sessions: cfg.Sessions,
		monitor:  cfg.Monitor,
		policy:   cfg.Policy,
		bus:      cfg.Events,
		health:   cfg.Health,
		presets:  cfg.Presets,
		journal:  cfg.Journal,
		defaults: cfg.Defaults,
		clients:  make(map[*client]struct{}),
	}
	if s.presets == nil {
		s.presets = mirror.NewPresetBook()
	}
	if s.defaults == nil {
		s.defaults = mirror.DefaultOptions
	}
	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /devices", s.handleListDevices)
	mux.HandleFunc("GET /devices/monitored", s.handleMonitoredDevices)
	mux.HandleFunc("GET /devices/{id}/specs", s.handleDeviceSpecs)
	mux.HandleFunc("POST /devices/{id}/wifi", s.handleConnectWifi)
	mux.HandleFunc("DELETE /devices/{id}", s.handleDisconnect)

	mux.HandleFunc("GET /session", s.handleSessionStatus)
	mux.HandleFunc("GET /session/last", s.handleLastSession)
	mux.HandleFunc("POST /session", s.handleStartSession)
	mux.HandleFunc("DELETE /session", s.handleStopSession)
	mux.HandleFunc("POST /session/preview", s.handlePreview)

	mux.HandleFunc("GET /presets", s.handlePresets)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /journal", s.handleJournal)

	return requestLogger(mux)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Close disconnects every WebSocket client.
func (s *Server) Close() {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		s.removeClient(c)
	}
}

// handleWebSocket upgrades the connection and streams every bus event to
// it as JSON. Slow clients lose events rather than stall the bus.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", logging.KeyError, err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	c.unsubscribe = s.bus.Subscribe(func(e events.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		if !c.enqueue(data) {
			log.Debug("dropped event for websocket client", "type", string(e.Type))
		}
	})

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	log.Info("websocket client connected", "remote", r.RemoteAddr)
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) removeClient(c *client) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
}

// readPump only services control frames; clients do not send commands
// over the socket.
func (s *Server) readPump(c *client) {
	defer s.removeClient(c)

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", logging.KeyError, err)
			}
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("encode response failed", logging.KeyError, err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
