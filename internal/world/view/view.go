// Package view содержит виды мира: объекты, которые сопоставляют области
// значения блоков и биомов.
//
// Отсутствие значения (block.Absent, biome.Absent): нормальный результат чтения.
// ErrOutOfBounds означает обращение за пределами области вида, проверяющего границы.
package view

import (
	"errors"
	"fmt"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

var (
	// ErrOutOfBounds возвращается при обращении к точке вне области вида
	ErrOutOfBounds = errors.New("point out of view bounds")
	// ErrReadOnly возвращается при записи в вид только для чтения
	ErrReadOnly = errors.New("view is read-only")
)

// View: вид мира только для чтения
type View interface {
	// Area возвращает область, которую покрывает вид
	Area() area.Area
	// Block возвращает блок в точке или block.Absent
	Block(p vec.Vec3) (block.BlockID, error)
	// Biome возвращает биом в точке или biome.Absent
	Biome(p vec.Vec3) (biome.BiomeType, error)
}

// Writer: поверхность записи вида
type Writer interface {
	SetBlock(p vec.Vec3, id block.BlockID) error
	SetBiome(p vec.Vec3, b biome.BiomeType) error
}

// Mutable: изменяемый вид
type Mutable interface {
	View
	Writer
	// Clear удаляет значения в области a
	Clear(a area.Area) error
	// Mutate выполняет пакет записей под одной блокировкой.
	// Параллельные читатели видят либо весь пакет, либо ничего.
	Mutate(fn func(w Writer) error) error
}

func outOfBounds(p vec.Vec3) error {
	return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
}

// WriterFunc адаптирует пару функций к Writer
type WriterFunc struct {
	Block func(p vec.Vec3, id block.BlockID) error
	Biome func(p vec.Vec3, b biome.BiomeType) error
}

func (w WriterFunc) SetBlock(p vec.Vec3, id block.BlockID) error {
	if w.Block == nil {
		return ErrReadOnly
	}
	return w.Block(p, id)
}

func (w WriterFunc) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	if w.Biome == nil {
		return ErrReadOnly
	}
	return w.Biome(p, b)
}
