package events

import (
	"net/http"
	"sync"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
	"eclairia/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// origin policy is left to the proxy in front of the service
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

// Hub fans validation events out to WebSocket subscribers. A subscriber
// whose buffer is full is disconnected rather than slowing the publisher.
type Hub struct {
	clients map[string]*client
	mu      sync.RWMutex
	closed  bool

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	bufferSize   int

	logger *zap.SugaredLogger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan domain.Event
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

var _ ports.EventPublisher = (*Hub)(nil)

func NewHub(cfg Config, logger *zap.SugaredLogger) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:      make(map[string]*client),
		pingInterval: cfg.PingInterval,
		pongTimeout:  2 * cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		bufferSize:   cfg.BufferSize,
		logger:       logger,
	}
}

// Publish never blocks.
func (h *Hub) Publish(event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.logger.Warnw("dropping slow event subscriber", "client_id", id)
			delete(h.clients, id)
			c.close()
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		id:   utils.NewRequestID(),
		conn: conn,
		send: make(chan domain.Event, h.bufferSize),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		return
	}
	defer h.unregister(c)

	h.logger.Infow("event subscriber connected", "client_id", c.id, "remote_addr", r.RemoteAddr)

	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		return nil
	})

	// Subscribers never send anything meaningful; reading keeps pong and
	// close frames flowing.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	pingTicker := time.NewTicker(h.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(h.writeTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Infow("error writing event", "client_id", c.id, "error", err)
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Infow("error sending ping", "client_id", c.id, "error", err)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("event subscriber read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
		c.close()
	}
	h.mu.Unlock()

	h.logger.Infow("event subscriber disconnected", "client_id", c.id)
}
