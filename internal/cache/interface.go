package cache

import (
	"context"
	"errors"
	"time"
)

// Tier: уровень хранения закодированных колонок.
// Совпадает по форме с storage.Backend, поэтому Tiered сам может служить бэкендом.
type Tier interface {
	// Get возвращает значение ключа; ok=false, если ключа нет
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Invalidator рассылает уведомления об изменении ключей другим узлам.
type Invalidator interface {
	// PublishInvalidation отправляет уведомление об инвалидации.
	PublishInvalidation(ctx context.Context, key string) error

	// SubscribeInvalidations подписывается на уведомления от других узлов.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации кеша.
type InvalidationHandler func(key string) error

// CacheMetrics содержит метрики производительности кеша.
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`

	// Write-Behind метрики
	PendingWrites int64 `json:"pending_writes"`
	FlushErrors   int64 `json:"flush_errors"`
	Invalidations int64 `json:"invalidations"`

	LastUpdate time.Time `json:"last_update"`
}

// Config содержит настройки двухуровневого кеша.
type Config struct {
	// Write-Behind: запись в холодный уровень пачками в фоне
	WriteBehindEnabled   bool
	WriteBehindInterval  time.Duration
	WriteBehindBatchSize int
}

// ErrClosed возвращается после закрытия кеша
var ErrClosed = errors.New("cache is closed")
