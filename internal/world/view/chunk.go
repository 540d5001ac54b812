package view

import (
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// ChunkView: плотная колонка чанка 16 x H x 16.
//
// Границы не проверяются: X и Z берутся по модулю 16, Y вне [minY, maxY)
// приводит к панике. Вызывающий код обязан сам обрезать координаты.
type ChunkView struct {
	col    vec.Vec2
	minY   int
	height int
	area   area.Fill

	defBlock block.BlockID
	defBiome biome.BiomeType

	blocksMu sync.RWMutex
	blocks   []block.BlockID
	biomesMu sync.RWMutex
	biomes   []biome.BiomeType
}

// NewChunkView создаёт колонку, заполненную значениями по умолчанию
func NewChunkView(col vec.Vec2, minY, maxY int, defBlock block.BlockID, defBiome biome.BiomeType) *ChunkView {
	if maxY < minY {
		maxY = minY
	}
	height := maxY - minY
	n := vec.SectionSize * vec.SectionSize * height

	c := &ChunkView{
		col:      col,
		minY:     minY,
		height:   height,
		area:     area.ColumnArea(col, minY, maxY),
		defBlock: defBlock,
		defBiome: defBiome,
		blocks:   make([]block.BlockID, n),
		biomes:   make([]biome.BiomeType, n),
	}
	for i := range c.blocks {
		c.blocks[i] = defBlock
		c.biomes[i] = defBiome
	}
	return c
}

// RestoreChunkView собирает колонку из готовых массивов (используется кодеком)
func RestoreChunkView(col vec.Vec2, minY, maxY int, blocks []block.BlockID, biomes []biome.BiomeType) (*ChunkView, error) {
	c := NewChunkView(col, minY, maxY, block.AirBlockID, biome.Plains)
	if len(blocks) != len(c.blocks) || len(biomes) != len(c.biomes) {
		return nil, fmt.Errorf("chunk %v: expected %d cells, got %d blocks and %d biomes",
			col, len(c.blocks), len(blocks), len(biomes))
	}
	copy(c.blocks, blocks)
	copy(c.biomes, biomes)
	return c, nil
}

// Column возвращает координаты колонки
func (c *ChunkView) Column() vec.Vec2 { return c.col }

// MinY возвращает нижнюю границу (включительно)
func (c *ChunkView) MinY() int { return c.minY }

// MaxY возвращает верхнюю границу (исключительно)
func (c *ChunkView) MaxY() int { return c.minY + c.height }

func (c *ChunkView) Area() area.Area { return c.area }

func (c *ChunkView) index(p vec.Vec3) int {
	local := p.LocalInSection()
	return ((p.Y-c.minY)*vec.SectionSize+local.Z)*vec.SectionSize + local.X
}

func (c *ChunkView) Block(p vec.Vec3) (block.BlockID, error) {
	c.blocksMu.RLock()
	defer c.blocksMu.RUnlock()
	return c.blocks[c.index(p)], nil
}

func (c *ChunkView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	c.biomesMu.RLock()
	defer c.biomesMu.RUnlock()
	return c.biomes[c.index(p)], nil
}

func (c *ChunkView) SetBlock(p vec.Vec3, id block.BlockID) error {
	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()
	c.blocks[c.index(p)] = id
	return nil
}

func (c *ChunkView) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	c.biomesMu.Lock()
	defer c.biomesMu.Unlock()
	c.biomes[c.index(p)] = b
	return nil
}

// Clear возвращает ячейки области a к значениям по умолчанию
func (c *ChunkView) Clear(a area.Area) error {
	cut := area.Overlap(a, c.area)
	if area.IsEmpty(cut) {
		return nil
	}
	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()
	c.biomesMu.Lock()
	defer c.biomesMu.Unlock()

	for p := range area.Points(cut) {
		i := c.index(p)
		c.blocks[i] = c.defBlock
		c.biomes[i] = c.defBiome
	}
	return nil
}

func (c *ChunkView) Mutate(fn func(w Writer) error) error {
	c.blocksMu.Lock()
	defer c.blocksMu.Unlock()
	c.biomesMu.Lock()
	defer c.biomesMu.Unlock()

	return fn(chunkWriter{c})
}

// Blocks возвращает копию массива блоков в порядке X, Z, Y
func (c *ChunkView) Blocks() []block.BlockID {
	c.blocksMu.RLock()
	defer c.blocksMu.RUnlock()
	out := make([]block.BlockID, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Biomes возвращает копию массива биомов в порядке X, Z, Y
func (c *ChunkView) Biomes() []biome.BiomeType {
	c.biomesMu.RLock()
	defer c.biomesMu.RUnlock()
	out := make([]biome.BiomeType, len(c.biomes))
	copy(out, c.biomes)
	return out
}

// chunkWriter пишет без блокировок, их держит Mutate
type chunkWriter struct {
	c *ChunkView
}

func (w chunkWriter) SetBlock(p vec.Vec3, id block.BlockID) error {
	w.c.blocks[w.c.index(p)] = id
	return nil
}

func (w chunkWriter) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	w.c.biomes[w.c.index(p)] = b
	return nil
}
