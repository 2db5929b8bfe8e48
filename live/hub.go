package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod   = 10 * time.Second // 10秒ごとにPingを送信
	readDeadline = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 16
)

// Client はゲームモード画面などのWebSocket接続です。
type Client struct {
	GameID uint
	UserID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub はゲームごとに接続を束ね、抽選結果をブロードキャストします。
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]bool
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades the request and serves the client until it disconnects.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, gameID, userID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	c := &Client{GameID: gameID, UserID: userID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Info("Client connected", zap.Uint("gameID", gameID), zap.Uint("userID", userID))
	h.Broadcast(gameID, "presence", map[string]interface{}{"userId": userID, "online": true})

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop は切断を検知するためだけに読み続けます。
func (h *Hub) readLoop(c *Client) {
	defer func() {
		h.remove(c)
		h.Broadcast(c.GameID, "presence", map[string]interface{}{"userId": c.UserID, "online": false})
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Error("Failed to send message", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Info("Error sending ping, closing connection", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("Client removed", zap.Uint("userID", c.UserID))
	}
}

// Broadcast sends {"type": msgType, "data": payload} to every client of the game.
// Slow clients whose buffer is full miss the message.
func (h *Hub) Broadcast(gameID uint, msgType string, payload interface{}) {
	messageJSON, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.GameID != gameID {
			continue
		}
		select {
		case c.send <- messageJSON:
		default:
			h.logger.Warn("Dropping message for slow client", zap.Uint("userID", c.UserID))
		}
	}
}

// Count returns the number of open connections of the game.
func (h *Hub) Count(gameID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.clients {
		if c.GameID == gameID {
			n++
		}
	}
	return n
}
