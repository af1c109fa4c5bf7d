package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/usecase"
	applogger "MarketRadar/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsSendBuffer = 32
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// AlertHub streams radar alerts to connected WebSocket clients.
// Slow clients whose buffer is full miss messages rather than block the broadcast.
type AlertHub struct {
	upgrader websocket.Upgrader
	logger   *applogger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

var _ usecase.AlertBroadcaster = (*AlertHub)(nil)

func NewAlertHub(l *applogger.Logger, allowedOrigins []string) *AlertHub {
	if l == nil {
		l = applogger.Nop()
	}
	return &AlertHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:  l,
		clients: make(map[*wsClient]struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Broadcast sends a to every connected client.
func (h *AlertHub) Broadcast(a models.RadarAlert) {
	b, err := json.Marshal(a)
	if err != nil {
		h.logger.Warn("ws encode alert failed", applogger.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Debug("ws client lagging, alert dropped", applogger.String("symbol", a.Symbol))
		}
	}
}

// Clients is the number of connected subscribers.
func (h *AlertHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams alerts until the client goes away.
func (h *AlertHub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", applogger.Error(err))
		return nil
	}
	client := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("ws client connected", applogger.String("remote", c.RealIP()))

	go h.writePump(client)
	h.readPump(client)
	return nil
}

// readPump discards client messages and detects disconnects.
func (h *AlertHub) readPump(c *wsClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *AlertHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *AlertHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and rejects new ones.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
