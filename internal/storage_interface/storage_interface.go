package storage_interface

import (
	"context"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/view"
)

// ChunkProvider определяет интерфейс хранилища колонок мира
type ChunkProvider interface {
	// Load загружает колонку col высоты [minY, maxY).
	// Если колонка не сохранялась, возвращает nil без ошибки.
	Load(ctx context.Context, col vec.Vec2, minY, maxY int) (view.View, error)

	// Save сохраняет содержимое колонки col, прочитанное из v
	Save(ctx context.Context, col vec.Vec2, minY, maxY int, v view.View) error

	// Close закрывает хранилище
	Close() error
}
