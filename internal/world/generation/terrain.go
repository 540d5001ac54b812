package generation

import (
	"context"
	"math/rand"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/util"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// Пороги нормированной высоты
const (
	DeepWaterMax    = 0.20 // Ниже - глубинная вода
	ShallowWaterMax = 0.30 // Ниже - мелководье
	MountainStart   = 0.80 // Выше - горы
)

// TerrainConfig: параметры рельефа
type TerrainConfig struct {
	Seed          int64
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	ForestDensity float64 // Плотность деревьев на равнинах (от 0 до 1)
	BaseHeight    int     // Высота поверхности при шуме 0.5
	HeightScale   float64 // Перепад высот
	SeaLevel      int     // Уровень воды
}

// DefaultTerrainConfig возвращает параметры по умолчанию
func DefaultTerrainConfig(seed int64) TerrainConfig {
	return TerrainConfig{
		Seed:          seed,
		NoiseScale:    0.05,
		BiomeScale:    0.02,
		ForestDensity: 0.05,
		BaseHeight:    64,
		HeightScale:   48,
		SeaLevel:      62,
	}
}

// TerrainGenerator генерирует ландшафт по шуму Перлина.
// Деревья у границы колонки записываются через форки.
type TerrainGenerator struct {
	cfg    TerrainConfig
	height *util.Noise
	biomes *util.Noise
}

// NewTerrainGenerator создаёт генератор рельефа
func NewTerrainGenerator(cfg TerrainConfig) *TerrainGenerator {
	return &TerrainGenerator{
		cfg:    cfg,
		height: util.NewNoise(cfg.Seed),
		biomes: util.NewNoise(cfg.Seed + 42),
	}
}

// Generate заполняет единицу колонка за колонкой
func (g *TerrainGenerator) Generate(ctx context.Context, unit GenerationUnit) error {
	mod := unit.Modifier()
	start, end := mod.Start(), mod.End()
	if !area.Bounded(unit.Area()) {
		return area.ErrUnbounded
	}

	// Локальный генератор для детерминированности: сид зависит от глобального сида и координат
	rng := rand.New(rand.NewSource(g.cfg.Seed + int64(start.X*31) + int64(start.Z*17)))

	for z := start.Z; z < end.Z; z++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for x := start.X; x < end.X; x++ {
			if err := g.column(unit, mod, rng, x, z); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *TerrainGenerator) column(unit GenerationUnit, mod UnitModifier, rng *rand.Rand, x, z int) error {
	start, end := mod.Start(), mod.End()

	h := g.height.Noise2D(float64(x)*g.cfg.NoiseScale, float64(z)*g.cfg.NoiseScale)
	bv := g.biomes.Noise2D(float64(x)*g.cfg.BiomeScale, float64(z)*g.cfg.BiomeScale)
	b := BiomeFor(h, bv)

	surface := g.cfg.BaseHeight + int((h-0.5)*g.cfg.HeightScale)
	surface = max(start.Y+1, min(surface, end.Y-1))

	colArea := area.NewFill(vec.Vec3{X: x, Y: start.Y, Z: z}, vec.Vec3{X: x + 1, Y: end.Y, Z: z + 1})
	if err := mod.FillBiome(colArea, b); err != nil {
		return err
	}

	set := func(y int, id block.BlockID) error {
		return mod.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, id)
	}
	if err := set(start.Y, block.BedrockBlockID); err != nil {
		return err
	}
	for y := start.Y + 1; y <= surface; y++ {
		if err := set(y, blockAt(b, surface-y, surface < g.cfg.SeaLevel)); err != nil {
			return err
		}
	}
	for y := surface + 1; y <= g.cfg.SeaLevel && y < end.Y; y++ {
		water := block.WaterBlockID
		if b == biome.DeepWater {
			water = block.DeepWaterBlockID
		}
		if err := set(y, water); err != nil {
			return err
		}
	}
	if surface < g.cfg.SeaLevel {
		return nil
	}

	// На суше можем разместить объекты
	base := vec.Vec3{X: x, Y: surface + 1, Z: z}
	switch {
	case b == biome.Forest && rng.Float64() < 0.15:
		return g.placeTree(unit, mod, base, 3+rng.Intn(3))
	case b == biome.Plains && rng.Float64() < g.cfg.ForestDensity:
		return g.placeTree(unit, mod, base, 3+rng.Intn(3))
	case b == biome.Desert && rng.Float64() < 0.02:
		for dy := 0; dy < 1+rng.Intn(3) && base.Y+dy < end.Y; dy++ {
			if err := mod.SetBlock(base.Add(vec.Vec3{Y: dy}), block.CactusBlockID); err != nil {
				return err
			}
		}
	}
	return nil
}

// blockAt возвращает блок на глубине depth под поверхностью
func blockAt(b biome.BiomeType, depth int, underwater bool) block.BlockID {
	switch {
	case depth > 3:
		return block.StoneBlockID
	case b == biome.Mountains:
		return block.StoneBlockID
	case b == biome.Desert, underwater && depth == 0:
		return block.SandBlockID
	case depth == 0:
		return block.GrassBlockID
	}
	return block.DirtBlockID
}

// placeTree ставит ствол высотой height и крону радиуса 2.
// Если дерево не помещается в единицу, оно целиком пишется в форк.
func (g *TerrainGenerator) placeTree(unit GenerationUnit, mod UnitModifier, base vec.Vec3, height int) error {
	top := base.Y + height
	if top+2 > mod.End().Y {
		return nil
	}
	box := area.NewFill(
		vec.Vec3{X: base.X - 2, Y: base.Y, Z: base.Z - 2},
		vec.Vec3{X: base.X + 3, Y: top + 2, Z: base.Z + 3},
	)
	target := mod
	if !area.ContainsArea(unit.Area(), box) {
		target = unit.Fork(box)
	}

	for y := top - 1; y <= top+1; y++ {
		r := 2
		if y == top+1 {
			r = 1
		}
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				p := vec.Vec3{X: base.X + dx, Y: y, Z: base.Z + dz}
				if err := target.SetBlock(p, block.LeavesBlockID); err != nil {
					return err
				}
			}
		}
	}
	for y := base.Y; y < top; y++ {
		if err := target.SetBlock(vec.Vec3{X: base.X, Y: y, Z: base.Z}, block.LogBlockID); err != nil {
			return err
		}
	}
	return nil
}

// BiomeFor определяет тип биома на основе значений шума
func BiomeFor(height, biomeValue float64) biome.BiomeType {
	// Водные биомы в низинах
	if height < DeepWaterMax {
		return biome.DeepWater
	}
	if height < ShallowWaterMax {
		return biome.Water
	}

	// Горные биомы на возвышенностях
	if height > MountainStart {
		return biome.Mountains
	}

	// Для средних высот выбираем биом на основе biomeValue (шум нормирован в [0, 1])
	if biomeValue < 0.35 {
		return biome.Desert
	} else if biomeValue > 0.65 {
		return biome.Forest
	}
	return biome.Plains
}
