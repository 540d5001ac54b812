package storage

import (
	"encoding/binary"

	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/cespare/xxhash/v2"
)

// PaletteCache хранит разобранные палитры по xxhash их байтов.
// Соседние колонки обычно имеют одинаковые палитры, и разбор не повторяется.
// Кэш принадлежит одному кодеку и не защищён блокировками.
type PaletteCache struct {
	limit  int
	blocks map[uint64][]block.BlockID
	biomes map[uint64][]biome.BiomeType

	Hits, Misses uint64
}

// NewPaletteCache создаёт кэш не больше limit палитр каждого вида
func NewPaletteCache(limit int) *PaletteCache {
	return &PaletteCache{
		limit:  limit,
		blocks: make(map[uint64][]block.BlockID),
		biomes: make(map[uint64][]biome.BiomeType),
	}
}

// Blocks возвращает палитру блоков для байтов raw (uint16 LE на значение).
// Результат общий для всех попаданий и не должен изменяться.
func (pc *PaletteCache) Blocks(raw []byte) []block.BlockID {
	h := xxhash.Sum64(raw)
	if p, ok := pc.blocks[h]; ok && len(p) == len(raw)/2 {
		pc.Hits++
		return p
	}
	pc.Misses++
	p := make([]block.BlockID, len(raw)/2)
	for i := range p {
		p[i] = block.BlockID(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	if len(pc.blocks) >= pc.limit {
		clear(pc.blocks)
	}
	pc.blocks[h] = p
	return p
}

// Biomes возвращает палитру биомов для байтов raw
func (pc *PaletteCache) Biomes(raw []byte) []biome.BiomeType {
	h := xxhash.Sum64(raw)
	if p, ok := pc.biomes[h]; ok && len(p) == len(raw) {
		pc.Hits++
		return p
	}
	pc.Misses++
	p := make([]biome.BiomeType, len(raw))
	for i, b := range raw {
		p[i] = biome.BiomeType(b)
	}
	if len(pc.biomes) >= pc.limit {
		clear(pc.biomes)
	}
	pc.biomes[h] = p
	return p
}

// Len возвращает число закэшированных палитр
func (pc *PaletteCache) Len() int {
	return len(pc.blocks) + len(pc.biomes)
}
