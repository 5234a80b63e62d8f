package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"backendmanager/console/internal/domain"
	"backendmanager/console/internal/monitoring"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// SessionResolver 从已认证的请求中取出会话 id
type SessionResolver func(c *gin.Context) (string, bool)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			// 同源页面
			return requestOrigin == "http://"+r.Host || requestOrigin == "https://"+r.Host
		},
	}
}

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeNotification MessageType = "notification"
	MessageTypePing         MessageType = "ping"
)

// Message 推送给浏览器的消息
type Message struct {
	Type         MessageType          `json:"type"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Client 一个浏览器标签页的连接
type Client struct {
	ID        string
	SessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
}

type delivery struct {
	sessionID string
	message   *Message
}

// Hub 按会话管理 WebSocket 连接
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	sessions       map[string]map[string]*Client // sessionID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan delivery
	done           chan struct{} // Run 返回后关闭
	mu             sync.RWMutex
	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
}

// NewHub 创建 Hub，allowedOrigins 为空时只接受同源连接
func NewHub(allowedOrigins []string, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[string]*Client),
		sessions:       make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan delivery, 256),
		done:           make(chan struct{}),
		log:            logger.Named("websocket"),
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// Run 启动 Hub，ctx 取消后关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.sessions[client.SessionID] == nil {
				h.sessions[client.SessionID] = make(map[string]*Client)
			}
			h.sessions[client.SessionID][client.ID] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.UpdateWebsocketClients(count)
			h.log.Debug("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.broadcast:
			h.sendToSession(d.sessionID, d.message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// Notify 把通知推送给会话的所有连接，队列已满时丢弃
func (h *Hub) Notify(sessionID string, n domain.Notification) {
	msg := &Message{Type: MessageTypeNotification, Notification: &n, Timestamp: n.CreatedAt}
	select {
	case h.broadcast <- delivery{sessionID: sessionID, message: msg}:
	default:
		h.log.Warn("broadcast queue full, dropping notification", zap.String("session_id", sessionID))
	}
}

// Disconnect 关闭会话的所有连接，用于退出登录
func (h *Hub) Disconnect(sessionID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	if peers := h.sessions[client.SessionID]; peers != nil {
		delete(peers, client.ID)
		if len(peers) == 0 {
			delete(h.sessions, client.SessionID)
		}
	}
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.UpdateWebsocketClients(count)
	h.log.Debug("client unregistered", zap.String("id", client.ID))
}

// sendToSession 向会话的所有连接发送消息
func (h *Hub) sendToSession(sessionID string, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.sessions[sessionID] {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("client_id", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	data, err := json.Marshal(&Message{Type: MessageTypePing, Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]map[string]*Client)
	h.metrics.UpdateWebsocketClients(0)
}

// HandleWebSocket 升级已认证的请求
func HandleWebSocket(hub *Hub, resolve SessionResolver) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		sessionID, ok := resolve(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			conn:      conn,
			send:      make(chan []byte, sendBuffer),
			hub:       hub,
		}
		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取并丢弃客户端消息，只用于感知断开
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
