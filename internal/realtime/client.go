package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Message はWebSocketで送るメッセージのエンベロープ。
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client はルームに参加している1つのWebSocket接続を表す。
type Client struct {
	UserID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, 16),
	}
}

// OriginChecker はWebSocketのOriginヘッダーを許可するかを判定する。
type OriginChecker func(r *http.Request) bool

// AllowOrigins は指定オリジンのみ許可するOriginCheckerを返す。
// Originヘッダーのないリクエスト（非ブラウザクライアント）は許可する。
func AllowOrigins(origins ...string) OriginChecker {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// ServeWs は /ws/{userId} のWebSocketアップグレードを処理し、クライアントループを実行する。
// 所有者の確認はルーター側で行う。ここではOriginだけを検証する。
func ServeWs(hub *Hub, checkOrigin OriginChecker) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		client := newClient(hub, conn, userID)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump は切断検知のためだけに受信を続ける。クライアントからのメッセージは破棄する。
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
