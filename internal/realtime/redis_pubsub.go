package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "streamqa:user:"
	publishTimeout = 5 * time.Second
)

// userChannel は配信者ごとのpub/subチャネル名を返す。
func userChannel(userID string) string {
	return channelPrefix + userID
}

// redisPayload はインスタンス間ブロードキャストのためにRedisへ送るメッセージ。
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub はRedis pub/subによるPublisher/Subscriberの実装。
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisClient はREDIS_URLからクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("redis client connected", slog.String("addr", opts.Addr))
	return client, nil
}

// NewRedisPubSub はRedisPubSubを生成する。
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// PublishUserEvent は配信者のチャネルにイベントを発行する。
func (r *RedisPubSub) PublishUserEvent(userID, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, userChannel(userID), body).Err()
}

// SubscribeUser は配信者のチャネルを購読し、受信ごとにhandlerを呼ぶ。
// 戻り値のcancelで購読を停止する。
func (r *RedisPubSub) SubscribeUser(userID string, handler func(event string, payload []byte)) (func(), error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, userChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()

	return cancelCtx, nil
}

var (
	_ Publisher  = (*RedisPubSub)(nil)
	_ Subscriber = (*RedisPubSub)(nil)
)
