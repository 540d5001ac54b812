package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/dustin/go-humanize"
)

// ErrNotReady возвращается после закрытия хранилища
var ErrNotReady = errors.New("storage is not ready")

// Backend хранит закодированные колонки по ключу
type Backend interface {
	// Get возвращает значение ключа; ok=false, если ключа нет
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ColumnKey возвращает ключ колонки в хранилище
func ColumnKey(col vec.Vec2) string {
	return fmt.Sprintf(ColumnPrefix+"%d:%d", col.X, col.Y)
}

// ColumnPrefix: общий префикс ключей колонок
const ColumnPrefix = "chunk:"

// ParseColumnKey разбирает ключ, построенный ColumnKey
func ParseColumnKey(key string) (vec.Vec2, bool) {
	var col vec.Vec2
	if _, err := fmt.Sscanf(key, "chunk:%d:%d", &col.X, &col.Y); err != nil {
		return vec.Vec2{}, false
	}
	return col, ColumnKey(col) == key
}

// ChunkStore сохраняет колонки мира в Backend через пул кодеков.
// Реализует storage_interface.ChunkProvider.
type ChunkStore struct {
	backend Backend
	codecs  *CodecPool
	logger  *logging.Logger

	mu      sync.RWMutex
	isReady bool

	// OnEncoded вызывается с размером каждой сохранённой колонки
	OnEncoded func(n int)
}

// NewChunkStore оборачивает backend; workers ограничивает число одновременных кодеков
func NewChunkStore(backend Backend, workers int) (*ChunkStore, error) {
	codecs, err := NewCodecPool(workers)
	if err != nil {
		return nil, err
	}
	return &ChunkStore{
		backend: backend,
		codecs:  codecs,
		logger:  logging.GetStorageLogger(),
		isReady: true,
	}, nil
}

// Load загружает колонку. Колонка другой высоты считается повреждённой.
func (s *ChunkStore) Load(ctx context.Context, col vec.Vec2, minY, maxY int) (view.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return nil, ErrNotReady
	}

	data, ok, err := s.backend.Get(ctx, ColumnKey(col))
	if err != nil {
		return nil, fmt.Errorf("load column %v: %w", col, err)
	}
	if !ok {
		return nil, nil
	}

	codec, err := s.codecs.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.codecs.Release(codec)

	cv, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load column %v: %w", col, err)
	}
	if cv.Column() != col || cv.MinY() != minY || cv.MaxY() != maxY {
		return nil, fmt.Errorf("load column %v: %w: stored %v [%d, %d)", col, ErrCorrupt, cv.Column(), cv.MinY(), cv.MaxY())
	}
	s.logger.Trace("Загружена колонка %v (%s)", col, humanize.Bytes(uint64(len(data))))
	return cv, nil
}

// Save кодирует и сохраняет колонку
func (s *ChunkStore) Save(ctx context.Context, col vec.Vec2, minY, maxY int, v view.View) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}

	codec, err := s.codecs.Acquire(ctx)
	if err != nil {
		return err
	}
	data, err := codec.Encode(col, minY, maxY, v)
	s.codecs.Release(codec)
	if err != nil {
		return fmt.Errorf("encode column %v: %w", col, err)
	}

	if err := s.backend.Put(ctx, ColumnKey(col), data); err != nil {
		return fmt.Errorf("save column %v: %w", col, err)
	}
	if s.OnEncoded != nil {
		s.OnEncoded(len(data))
	}
	s.logger.Trace("Сохранена колонка %v (%s)", col, humanize.Bytes(uint64(len(data))))
	return nil
}

// Delete удаляет сохранённую колонку
func (s *ChunkStore) Delete(ctx context.Context, col vec.Vec2) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isReady {
		return ErrNotReady
	}
	return s.backend.Delete(ctx, ColumnKey(col))
}

// Close закрывает хранилище. Повторный вызов ничего не делает.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isReady {
		return nil
	}
	s.isReady = false
	s.codecs.Close()
	return s.backend.Close()
}

// CodecPool ограничивает число одновременно работающих кодеков.
// Каждый кодек со своим кэшем палитр принадлежит одному воркеру на время Acquire/Release.
type CodecPool struct {
	codecs chan *Codec
	all    []*Codec
}

// NewCodecPool создаёт size кодеков
func NewCodecPool(size int) (*CodecPool, error) {
	if size <= 0 {
		size = 1
	}
	p := &CodecPool{codecs: make(chan *Codec, size)}
	for i := 0; i < size; i++ {
		c, err := NewCodec()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.all = append(p.all, c)
		p.codecs <- c
	}
	return p, nil
}

// Acquire ждёт свободный кодек
func (p *CodecPool) Acquire(ctx context.Context) (*Codec, error) {
	select {
	case c := <-p.codecs:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release возвращает кодек в пул
func (p *CodecPool) Release(c *Codec) {
	p.codecs <- c
}

// Size возвращает число кодеков пула
func (p *CodecPool) Size() int { return len(p.all) }

// Close закрывает все кодеки. Вызывать, когда кодеки не используются.
func (p *CodecPool) Close() {
	for _, c := range p.all {
		c.Close()
	}
}
