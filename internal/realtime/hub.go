// Package realtime はWebSocketによる質問一覧の更新通知を提供する。
//
// ダッシュボードは配信者IDごとのルームに接続し、質問の投稿・ピン留め・ピン解除が
// 起きるたびに questions_changed イベントを受け取って一覧を再取得する。
// Redisが設定されている場合はpub/sub経由で他インスタンスの接続にも配信する。
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hitoshi/streamqa/internal/metrics"
)

const (
	// EventQuestionsChanged は質問一覧の再取得を促すイベント名。
	EventQuestionsChanged = "questions_changed"

	// PingInterval, PongWait はハートビート間隔（秒）。
	PingInterval = 30
	PongWait     = 60
)

// Publisher は他インスタンスへのイベント配信を行う。
type Publisher interface {
	PublishUserEvent(userID, event string, payload []byte) error
}

// Subscriber はユーザーごとのチャネルを購読し、受信イベントをhandlerに渡す。
type Subscriber interface {
	SubscribeUser(userID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub は配信者ID -> 接続集合を管理し、イベントをブロードキャストする。
// subsには購読が成立したルームだけが入る。subscribingは購読処理中のルーム。
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	subs        map[string]func()
	subscribing map[string]bool
	pub         Publisher
	sub         Subscriber
	metrics     metrics.MetricsCollector
}

// NewHub はHubを生成する。pub, subがnilの場合は単一インスタンス内でのみ配信する。
func NewHub(pub Publisher, sub Subscriber, mc metrics.MetricsCollector) *Hub {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		subs:        make(map[string]func()),
		subscribing: make(map[string]bool),
		pub:         pub,
		sub:         sub,
		metrics:     mc,
	}
}

// Register はクライアントをルームに追加する。
// ルームにRedis購読がなければ購読を試みる。失敗した場合は次のRegisterで再試行する。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.UserID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.UserID] = room
	}
	room[c] = struct{}{}
	needSub := h.sub != nil && h.subs[c.UserID] == nil && !h.subscribing[c.UserID]
	if needSub {
		h.subscribing[c.UserID] = true
	}
	h.mu.Unlock()

	h.metrics.RealtimeConnected()
	slog.Debug("realtime client joined", slog.String("user_id", c.UserID))

	if needSub {
		h.subscribe(c.UserID)
	}
}

// subscribe はロックを持たずにRedis購読を行い、成立した時点でまだルームが残っていれば登録する。
func (h *Hub) subscribe(userID string) {
	cancel, err := h.sub.SubscribeUser(userID, func(event string, payload []byte) {
		h.Broadcast(userID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribing, userID)
	if err != nil {
		slog.Warn("realtime subscribe failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(h.rooms[userID]) == 0 {
		// 購読中に全員が退出した
		cancel()
		return
	}
	h.subs[userID] = cancel
}

// Unregister はクライアントをルームから外し、送信チャネルを閉じる。
// ルーム最後の接続が抜けた場合はRedis購読も解除する。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.UserID)
		if cancel, ok := h.subs[c.UserID]; ok {
			cancel()
			delete(h.subs, c.UserID)
		}
	}
	h.mu.Unlock()

	h.metrics.RealtimeDisconnected()
	slog.Debug("realtime client left", slog.String("user_id", c.UserID))
}

// Broadcast はルーム内のローカル接続にイベントを送る。
// 送信バッファが埋まっている接続はスキップする（次のイベントで再取得されるため欠落は許容）。
func (h *Hub) Broadcast(userID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case nil:
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := Message{Event: event, Data: data}

	// Unregisterによるcloseと競合しないよう、読み取りロック中に非ブロッキング送信する
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[userID] {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// NotifyQuestionsChanged は配信者の質問一覧が変化したことを通知する。
// Redis構成では購読コールバックが全インスタンスに配信する。ただし、このインスタンスの
// ルームに購読が成立していない場合は購読経由で届かないため、ローカルにも直接配信する。
func (h *Hub) NotifyQuestionsChanged(userID, reason string) {
	payload, _ := json.Marshal(map[string]string{"reason": reason})
	if h.pub != nil {
		err := h.pub.PublishUserEvent(userID, EventQuestionsChanged, payload)
		if err == nil {
			if h.hasLocalWithoutSubscription(userID) {
				h.Broadcast(userID, EventQuestionsChanged, json.RawMessage(payload))
			}
			return
		}
		slog.Warn("realtime publish failed, falling back to local broadcast",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	h.Broadcast(userID, EventQuestionsChanged, json.RawMessage(payload))
}

func (h *Hub) hasLocalWithoutSubscription(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0 && h.subs[userID] == nil
}

// ConnectionCount はルームの接続数を返す。
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Close は全てのRedis購読を解除する。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, cancel := range h.subs {
		cancel()
		delete(h.subs, userID)
	}
}
