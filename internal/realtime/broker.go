package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EventType 为行级变更类型。
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event 描述一次行级变更通知。
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Topic  string          `json:"topic"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// NewEvent 构造事件并序列化记录，序列化失败时记录为空。
func NewEvent(table string, typ EventType, record interface{}) Event {
	evt := Event{Table: table, Type: typ, At: time.Now().UTC()}
	if record != nil {
		if raw, err := json.Marshal(record); err == nil {
			evt.Record = raw
		}
	}
	return evt
}

// Decode 把事件记录反序列化到 dst。
func (e Event) Decode(dst interface{}) error {
	if len(e.Record) == 0 {
		return fmt.Errorf("event %s/%s has no record", e.Table, e.Type)
	}
	return json.Unmarshal(e.Record, dst)
}

// Topic 生成按行过滤的订阅主题，例如 connections:user_id=eq.5。
func Topic(table, column string, value interface{}) string {
	return fmt.Sprintf("%s:%s=eq.%v", table, column, value)
}

// Broker 负责发布与订阅变更事件。
type Broker interface {
	Publish(ctx context.Context, topic string, evt Event) error
	Subscribe(topic string) *Subscription
	Close() error
}

// Subscription 为一个主题的订阅，C 在 Close 后关闭。
type Subscription struct {
	Topic string
	C     <-chan Event

	ch     chan Event
	mu     sync.Mutex
	closed bool
	cancel func()
}

const subscriptionBuffer = 16

func newSubscription(topic string) *Subscription {
	ch := make(chan Event, subscriptionBuffer)
	return &Subscription{Topic: topic, C: ch, ch: ch}
}

// Close 取消订阅，重复调用无副作用。
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	close(s.ch)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// deliver 非阻塞投递，订阅方消费过慢时丢弃事件。
func (s *Subscription) deliver(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		slog.Warn("realtime subscriber is slow, dropping event", "topic", s.Topic, "table", evt.Table)
		return false
	}
}

// MemoryBroker 为进程内的事件分发实现。
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewMemoryBroker 构造 MemoryBroker。
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*Subscription]struct{})}
}

// Publish 把事件投递给该主题的全部订阅者。
func (b *MemoryBroker) Publish(_ context.Context, topic string, evt Event) error {
	evt.Topic = topic

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(evt)
	}
	return nil
}

// Subscribe 订阅主题。
func (b *MemoryBroker) Subscribe(topic string) *Subscription {
	sub := newSubscription(topic)

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()

	sub.cancel = func() {
		b.mu.Lock()
		delete(b.topics[topic], sub)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		b.mu.Unlock()
	}
	return sub
}

// Subscribers 返回主题当前的订阅数量。
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close 关闭所有订阅。
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	var subs []*Subscription
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.mu.Lock()
		sub.cancel = nil
		sub.mu.Unlock()
		sub.Close()
	}
	return nil
}

// PublishAll 向多个主题发布同一事件，返回第一个错误。
func PublishAll(ctx context.Context, b Broker, evt Event, topics ...string) error {
	if b == nil {
		return nil
	}
	var first error
	for _, topic := range topics {
		if err := b.Publish(ctx, topic, evt); err != nil && first == nil {
			first = fmt.Errorf("publish %s: %w", topic, err)
		}
	}
	return first
}
