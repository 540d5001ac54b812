package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/logging"
)

// Tiered: двухуровневое хранилище: горячий уровень (Redis или память узла)
// перед холодным (BadgerDB).
//
// Особенности:
// - Read-Through: промах горячего уровня читается из холодного и прогревает горячий
// - Write-Through или Write-Behind в холодный уровень
// - Инвалидация горячих копий на других узлах через Invalidator
type Tiered struct {
	hot         Tier
	cold        Tier
	config      Config
	invalidator Invalidator
	logger      *logging.Logger

	// Write-Behind: значения, ещё не записанные в холодный уровень
	mu      sync.Mutex
	pending map[string]pendingWrite
	seq     uint64
	flushCh chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool

	requests      atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	flushErrors   atomic.Int64
	invalidations atomic.Int64
	latencySum    atomic.Int64 // в наносекундах
	latencyCount  atomic.Int64
	maxLatency    atomic.Int64
}

type pendingWrite struct {
	data []byte
	seq  uint64
}

// NewTiered создаёт двухуровневое хранилище. invalidator может быть nil.
func NewTiered(ctx context.Context, hot, cold Tier, config Config, invalidator Invalidator) (*Tiered, error) {
	if config.WriteBehindInterval == 0 {
		config.WriteBehindInterval = 5 * time.Second
	}
	if config.WriteBehindBatchSize == 0 {
		config.WriteBehindBatchSize = 100
	}

	t := &Tiered{
		hot:         hot,
		cold:        cold,
		config:      config,
		invalidator: invalidator,
		logger:      logging.GetStorageLogger(),
		pending:     make(map[string]pendingWrite),
		flushCh:     make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}

	if invalidator != nil {
		err := invalidator.SubscribeInvalidations(ctx, func(key string) error {
			t.invalidations.Add(1)
			return t.hot.Delete(context.Background(), key)
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe invalidations: %w", err)
		}
	}

	if config.WriteBehindEnabled {
		t.startWriteBehind()
	}
	t.logger.Info("Двухуровневый кеш запущен (Write-Behind: %v)", config.WriteBehindEnabled)
	return t, nil
}

// Get читает ключ из горячего уровня, при промахе из очереди Write-Behind и холодного уровня
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t.closed.Load() {
		return nil, false, ErrClosed
	}
	start := time.Now()
	defer t.recordLatency(start)
	t.requests.Add(1)

	data, ok, err := t.hot.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Ошибка горячего уровня для %s: %v", key, err)
	} else if ok {
		t.hits.Add(1)
		return data, true, nil
	}
	t.misses.Add(1)

	t.mu.Lock()
	pw, ok := t.pending[key]
	t.mu.Unlock()
	if ok {
		return pw.data, true, nil
	}

	data, ok, err = t.cold.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.hot.Put(ctx, key, data); err != nil {
		t.logger.Warn("Не удалось прогреть %s: %v", key, err)
	}
	return data, true, nil
}

// Put записывает значение в горячий уровень и в холодный (сразу или в фоне)
func (t *Tiered) Put(ctx context.Context, key string, data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer t.recordLatency(start)

	if err := t.hot.Put(ctx, key, data); err != nil {
		return fmt.Errorf("hot put %s: %w", key, err)
	}

	if t.config.WriteBehindEnabled {
		t.mu.Lock()
		t.seq++
		t.pending[key] = pendingWrite{data: data, seq: t.seq}
		full := len(t.pending) >= t.config.WriteBehindBatchSize
		t.mu.Unlock()
		if full {
			select {
			case t.flushCh <- struct{}{}:
			default:
			}
		}
	} else if err := t.cold.Put(ctx, key, data); err != nil {
		return fmt.Errorf("cold put %s: %w", key, err)
	}

	t.publishInvalidation(ctx, key)
	return nil
}

// Delete удаляет ключ со всех уровней
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()

	err := errors.Join(t.hot.Delete(ctx, key), t.cold.Delete(ctx, key))
	t.publishInvalidation(ctx, key)
	return err
}

func (t *Tiered) publishInvalidation(ctx context.Context, key string) {
	if t.invalidator == nil {
		return
	}
	if err := t.invalidator.PublishInvalidation(ctx, key); err != nil {
		t.logger.Error("Failed to publish invalidation for key %s: %v", key, err)
	}
}

// Flush синхронно записывает очередь Write-Behind в холодный уровень
func (t *Tiered) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := make(map[string]pendingWrite, len(t.pending))
	for k, v := range t.pending {
		batch[k] = v
	}
	t.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	var errs []error
	for key, pw := range batch {
		if err := t.cold.Put(ctx, key, pw.data); err != nil {
			t.flushErrors.Add(1)
			errs = append(errs, fmt.Errorf("flush %s: %w", key, err))
			continue
		}
		t.mu.Lock()
		// Ключ могли перезаписать во время сброса
		if cur, ok := t.pending[key]; ok && cur.seq == pw.seq {
			delete(t.pending, key)
		}
		t.mu.Unlock()
	}
	if err := errors.Join(errs...); err != nil {
		t.logger.Error("Write-Behind batch store failed (%d items): %v", len(batch), err)
		return err
	}
	t.logger.Debug("Write-Behind batch stored: %d items in %v", len(batch), time.Since(start))
	return nil
}

// startWriteBehind запускает горутину для асинхронной записи в холодный уровень.
func (t *Tiered) startWriteBehind() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.config.WriteBehindInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-t.flushCh:
			case <-t.stopCh:
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_ = t.Flush(ctx)
			cancel()
		}
	}()

	t.logger.Info("Write-Behind started (interval: %v, batch size: %d)",
		t.config.WriteBehindInterval, t.config.WriteBehindBatchSize)
}

// Close останавливает Write-Behind, сбрасывает очередь и закрывает оба уровня.
func (t *Tiered) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.stopCh)
	t.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	flushErr := t.Flush(ctx)

	var invErr error
	if t.invalidator != nil {
		invErr = t.invalidator.Close()
	}
	return errors.Join(flushErr, invErr, t.hot.Close(), t.cold.Close())
}

// GetMetrics возвращает текущие метрики кеша.
func (t *Tiered) GetMetrics() *CacheMetrics {
	m := &CacheMetrics{
		TotalRequests: t.requests.Load(),
		CacheHits:     t.hits.Load(),
		CacheMisses:   t.misses.Load(),
		FlushErrors:   t.flushErrors.Load(),
		Invalidations: t.invalidations.Load(),
		LastUpdate:    time.Now(),
	}
	if total := m.CacheHits + m.CacheMisses; total > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(total)
	}
	if count := t.latencyCount.Load(); count > 0 {
		m.AvgLatencyMs = float64(t.latencySum.Load()) / float64(count) / 1e6 // нс в мс
	}
	m.MaxLatencyMs = float64(t.maxLatency.Load()) / 1e6

	t.mu.Lock()
	m.PendingWrites = int64(len(t.pending))
	t.mu.Unlock()
	return m
}

// recordLatency записывает latency метрику.
func (t *Tiered) recordLatency(start time.Time) {
	latency := time.Since(start).Nanoseconds()
	t.latencySum.Add(latency)
	t.latencyCount.Add(1)

	for {
		current := t.maxLatency.Load()
		if latency <= current || t.maxLatency.CompareAndSwap(current, latency) {
			break
		}
	}
}
