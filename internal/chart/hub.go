// Package chart 通过 websocket 将价格标记推送给浏览器图表。
package chart

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"signal-desk/internal/overlay"
)

const (
	OpClear = "clear"
	OpAdd   = "add"

	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Message 为推送给图表端的单条指令。
type Message struct {
	Op     string          `json:"op"`
	Marker *overlay.Marker `json:"marker,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 实现 overlay.Surface 与 overlay.Readiness。
// 至少有一个图表连接后才视为就绪；新连接会收到当前完整的标记集合。
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	markers []overlay.Marker
	pending func()

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub 创建图表推送中心。
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ClearMarkers 实现 overlay.Surface。
func (h *Hub) ClearMarkers() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.markers = h.markers[:0]
	h.broadcastLocked(Message{Op: OpClear})
}

// AddMarker 实现 overlay.Surface。
func (h *Hub) AddMarker(m overlay.Marker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.markers = append(h.markers, m)
	h.broadcastLocked(Message{Op: OpAdd, Marker: &m})
}

// ReplaceMarkers 实现 overlay.Replacer，在同一把锁内完成清空与全部添加。
func (h *Hub) ReplaceMarkers(markers []overlay.Marker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.markers = append(h.markers[:0:0], markers...)
	h.broadcastLocked(Message{Op: OpClear})
	for i := range h.markers {
		m := h.markers[i]
		h.broadcastLocked(Message{Op: OpAdd, Marker: &m})
	}
}

// WhenReady 实现 overlay.Readiness。未就绪时只保留最后一次绘制。
func (h *Hub) WhenReady(fn func()) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.pending = fn
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	fn()
}

// Markers 返回当前标记集合的副本。
func (h *Hub) Markers() []overlay.Marker {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]overlay.Marker, len(h.markers))
	copy(out, h.markers)
	return out
}

// Clients 返回当前连接数。
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP 升级为 websocket 连接并注册图表端。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("图表连接升级失败", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	go h.writeLoop(c)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	pending := h.pending
	h.pending = nil
	if pending == nil {
		h.replayLocked(c)
	}
	h.mu.Unlock()

	h.logger.Info("图表端已连接", zap.String("remote", r.RemoteAddr))

	if pending != nil {
		pending()
	}

	h.readLoop(c)
}

// Close 断开全部图表连接。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) replayLocked(c *client) {
	if len(h.markers) == 0 {
		return
	}
	h.sendLocked(c, Message{Op: OpClear})
	for i := range h.markers {
		m := h.markers[i]
		h.sendLocked(c, Message{Op: OpAdd, Marker: &m})
	}
}

func (h *Hub) broadcastLocked(msg Message) {
	for c := range h.clients {
		h.sendLocked(c, msg)
	}
}

func (h *Hub) sendLocked(c *client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("序列化图表消息失败", zap.Error(err))
		return
	}

	select {
	case c.send <- payload:
	default:
		h.logger.Warn("图表端消费过慢，断开连接")
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readLoop 丢弃图表端发来的数据，仅用于感知断开。
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(c)
		h.mu.Unlock()
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()

	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("写入图表消息失败", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

var (
	_ overlay.Surface   = (*Hub)(nil)
	_ overlay.Readiness = (*Hub)(nil)
	_ overlay.Replacer  = (*Hub)(nil)
)
