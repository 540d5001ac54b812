package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/eventbus"
)

// InvalidationMessage: полезная нагрузка события инвалидации.
type InvalidationMessage struct {
	Key    string `json:"key"`
	NodeID string `json:"node_id"`
}

// BusInvalidator рассылает инвалидации через шину событий (в продакшене: NATS JetStream).
// Собственные сообщения узла и повторы в окне дедупликации игнорируются.
type BusInvalidator struct {
	bus          eventbus.EventBus
	nodeID       string
	dedupeWindow time.Duration

	mu         sync.Mutex
	sub        eventbus.Subscription
	recentKeys map[string]time.Time

	publishedCount atomic.Int64
	receivedCount  atomic.Int64
	errorsCount    atomic.Int64
}

// NewBusInvalidator создаёт инвалидатор узла nodeID
func NewBusInvalidator(bus eventbus.EventBus, nodeID string, dedupeWindow time.Duration) *BusInvalidator {
	return &BusInvalidator{
		bus:          bus,
		nodeID:       nodeID,
		dedupeWindow: dedupeWindow,
		recentKeys:   make(map[string]time.Time),
	}
}

func (b *BusInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	ev, err := eventbus.NewEnvelope(b.nodeID, eventbus.EventColumnInvalidated, 5, InvalidationMessage{Key: key, NodeID: b.nodeID})
	if err != nil {
		return err
	}
	if err := b.bus.Publish(ctx, ev); err != nil {
		b.errorsCount.Add(1)
		return fmt.Errorf("publish invalidation %s: %w", key, err)
	}
	b.publishedCount.Add(1)
	return nil
}

func (b *BusInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	sub, err := b.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.EventColumnInvalidated}},
		func(ctx context.Context, ev *eventbus.Envelope) {
			var msg InvalidationMessage
			if err := json.Unmarshal(ev.Payload, &msg); err != nil {
				b.errorsCount.Add(1)
				return
			}
			if msg.NodeID == b.nodeID || b.isDuplicate(msg.Key, ev.Timestamp) {
				return
			}
			b.receivedCount.Add(1)
			if err := handler(msg.Key); err != nil {
				b.errorsCount.Add(1)
			}
		})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
	return nil
}

// isDuplicate отбрасывает повтор ключа с тем же временем в окне дедупликации
func (b *BusInvalidator) isDuplicate(key string, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for k, seen := range b.recentKeys {
		if now.Sub(seen) > b.dedupeWindow {
			delete(b.recentKeys, k)
		}
	}
	id := key + "@" + at.Format(time.RFC3339Nano)
	if _, ok := b.recentKeys[id]; ok {
		return true
	}
	b.recentKeys[id] = now
	return false
}

// Stats возвращает число отправленных, полученных и ошибочных сообщений
func (b *BusInvalidator) Stats() (published, received, errs int64) {
	return b.publishedCount.Load(), b.receivedCount.Load(), b.errorsCount.Load()
}

// Close отписывается от шины. Саму шину закрывает владелец.
func (b *BusInvalidator) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	return nil
}
