package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "tapcard:"

// RedisBroker 通过 Redis pub/sub 在多个实例之间分发变更事件。
type RedisBroker struct {
	client *redis.Client
	ctx    context.Context
	stop   context.CancelFunc
}

// NewRedisBroker 连接 Redis 并验证可用性。
func NewRedisBroker(addr, password string) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &RedisBroker{client: client, ctx: ctx, stop: stop}, nil
}

// Publish 序列化事件并发布到主题对应的频道。
func (b *RedisBroker) Publish(ctx context.Context, topic string, evt Event) error {
	evt.Topic = topic
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe 订阅主题，后台协程把 Redis 消息转发到订阅通道。
func (b *RedisBroker) Subscribe(topic string) *Subscription {
	sub := newSubscription(topic)
	pubsub := b.client.Subscribe(b.ctx, redisChannelPrefix+topic)

	ctx, cancel := context.WithCancel(b.ctx)
	sub.cancel = func() {
		cancel()
		pubsub.Close()
	}

	go func() {
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					sub.Close()
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					slog.Warn("discarding malformed realtime event", "topic", topic, "error", err)
					continue
				}
				sub.deliver(evt)
			}
		}
	}()

	return sub
}

// Close 停止全部订阅并关闭连接。
func (b *RedisBroker) Close() error {
	b.stop()
	return b.client.Close()
}
