// Package generation описывает генераторы мира, единицы генерации
// и реестр форков (записей, выходящих за пределы своей единицы).
package generation

import (
	"context"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// Generator заполняет единицу генерации
type Generator interface {
	Generate(ctx context.Context, unit GenerationUnit) error
}

// GeneratorFunc адаптирует функцию к Generator
type GeneratorFunc func(ctx context.Context, unit GenerationUnit) error

func (f GeneratorFunc) Generate(ctx context.Context, unit GenerationUnit) error {
	return f(ctx, unit)
}

// GenerationUnit: область, которую генератор заполняет за один вызов
type GenerationUnit interface {
	// Area возвращает основную область единицы
	Area() area.Area
	// Modifier возвращает поверхность записи в основную область
	Modifier() UnitModifier
	// Fork возвращает модификатор для записи в область a за пределами единицы.
	// Записи попадают в мир, когда целевые колонки станут загруженными.
	Fork(a area.Area) UnitModifier
	// ForkWriter вызывает fn с неограниченным модификатором.
	// У него нет начала, поэтому SetRelative и FillHeight возвращают area.ErrUnbounded.
	// Если fn вернула ошибку, записи отбрасываются.
	ForkWriter(fn func(m UnitModifier) error) error
}

// UnitModifier: поверхность записи единицы генерации
type UnitModifier interface {
	SetBlock(p vec.Vec3, id block.BlockID) error
	SetBiome(p vec.Vec3, b biome.BiomeType) error
	// SetRelative записывает блок относительно Start; только для ограниченных модификаторов
	SetRelative(x, y, z int, id block.BlockID) error
	// Fill записывает блок во все точки a внутри модификатора
	Fill(a area.Area, id block.BlockID) error
	// FillBiome записывает биом во все точки a внутри модификатора
	FillBiome(a area.Area, b biome.BiomeType) error
	// FillHeight заполняет слои [minY, maxY) по всей горизонтали модификатора
	FillHeight(minY, maxY int, id block.BlockID) error
	Start() vec.Vec3
	End() vec.Vec3
	Size() vec.Vec3
}
