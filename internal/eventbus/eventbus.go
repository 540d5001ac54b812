package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий мира
const (
	EventColumnLoaded      = "ColumnLoaded"
	EventColumnUnloaded    = "ColumnUnloaded"
	EventWorldSaved        = "WorldSaved"
	EventColumnInvalidated = "ColumnInvalidated"
)

// Envelope описывает универсальный контейнер события.
// Все поля фиксированы для версионирования и трассировки.
type Envelope struct {
	ID        string            `json:"id"`        // Глобально уникальный идентификатор (UUID).
	Timestamp time.Time         `json:"timestamp"` // Время создания события (UTC).
	Source    string            `json:"source"`    // Экземпляр-источник.
	EventType string            `json:"type"`      // Тип события (ColumnLoaded…).
	Version   int               `json:"version"`   // Схема полезной нагрузки.
	Priority  int               `json:"priority"`  // 0=Low … 9=Critical (для backpressure).
	Payload   []byte            `json:"payload"`   // Полезная нагрузка в JSON.
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ColumnEvent: полезная нагрузка событий о колонках
type ColumnEvent struct {
	World   string `json:"world"`
	X       int    `json:"x"`
	Z       int    `json:"z"`
	Source  string `json:"source,omitempty"` // storage | generated | empty
	Columns int    `json:"columns,omitempty"`
}

// NewEnvelope упаковывает payload в конверт события
func NewEnvelope(source, eventType string, priority int, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Column разбирает полезную нагрузку события о колонке
func (ev *Envelope) Column() (ColumnEvent, error) {
	var ce ColumnEvent
	if err := json.Unmarshal(ev.Payload, &ce); err != nil {
		return ce, fmt.Errorf("unmarshal %s: %w", ev.EventType, err)
	}
	return ce, nil
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто: все типы.
	Sources []string // Если пусто: все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}
