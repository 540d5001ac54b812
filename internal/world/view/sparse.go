package view

import (
	"sync"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// bounds: габарит записанных точек
type bounds struct {
	min, max vec.Vec3
	ok       bool
}

func (b *bounds) add(p vec.Vec3) {
	hi := p.Add(vec.Vec3{X: 1, Y: 1, Z: 1})
	if !b.ok {
		b.min, b.max, b.ok = p, hi, true
		return
	}
	b.min = b.min.Min(p)
	b.max = b.max.Max(hi)
}

// column: значения одной колонки (x, z) по высоте
type column[T any] map[int]T

// SparseView хранит произвольные точки в карте колонок (x, z) -> (y -> значение).
// Область: габарит всех записанных точек.
type SparseView struct {
	blocksMu   sync.RWMutex
	blocks     map[vec.Vec2]column[block.BlockID]
	blockBound bounds

	biomesMu   sync.RWMutex
	biomes     map[vec.Vec2]column[biome.BiomeType]
	biomeBound bounds
}

// NewSparseView создаёт пустой разреженный вид
func NewSparseView() *SparseView {
	return &SparseView{
		blocks: make(map[vec.Vec2]column[block.BlockID]),
		biomes: make(map[vec.Vec2]column[biome.BiomeType]),
	}
}

func key(p vec.Vec3) vec.Vec2 { return vec.Vec2{X: p.X, Y: p.Z} }

func (s *SparseView) Area() area.Area {
	s.blocksMu.RLock()
	bb := s.blockBound
	s.blocksMu.RUnlock()
	s.biomesMu.RLock()
	ob := s.biomeBound
	s.biomesMu.RUnlock()

	switch {
	case !bb.ok && !ob.ok:
		return area.Empty()
	case !ob.ok:
		return area.NewFill(bb.min, bb.max)
	case !bb.ok:
		return area.NewFill(ob.min, ob.max)
	}
	return area.NewFill(bb.min.Min(ob.min), bb.max.Max(ob.max))
}

// Written возвращает точную область записанных точек, а не габарит
func (s *SparseView) Written() area.Area {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	s.biomesMu.RLock()
	defer s.biomesMu.RUnlock()

	var points []vec.Vec3
	points = appendPoints(points, s.blocks)
	points = appendPoints(points, s.biomes)
	return area.Scatter(points...)
}

// Len возвращает количество точек с записанным блоком или биомом
func (s *SparseView) Len() int {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	s.biomesMu.RLock()
	defer s.biomesMu.RUnlock()

	n := 0
	for k, col := range s.blocks {
		n += len(col)
		for y := range s.biomes[k] {
			if _, dup := col[y]; !dup {
				n++
			}
		}
	}
	for k, col := range s.biomes {
		if _, seen := s.blocks[k]; !seen {
			n += len(col)
		}
	}
	return n
}

func appendPoints[T any](dst []vec.Vec3, cols map[vec.Vec2]column[T]) []vec.Vec3 {
	for k, col := range cols {
		for y := range col {
			dst = append(dst, vec.Vec3{X: k.X, Y: y, Z: k.Y})
		}
	}
	return dst
}

func (s *SparseView) Block(p vec.Vec3) (block.BlockID, error) {
	s.blocksMu.RLock()
	defer s.blocksMu.RUnlock()
	if id, ok := s.blocks[key(p)][p.Y]; ok {
		return id, nil
	}
	return block.Absent, nil
}

func (s *SparseView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	s.biomesMu.RLock()
	defer s.biomesMu.RUnlock()
	if b, ok := s.biomes[key(p)][p.Y]; ok {
		return b, nil
	}
	return biome.Absent, nil
}

// SetBlock записывает блок; block.Absent удаляет запись
func (s *SparseView) SetBlock(p vec.Vec3, id block.BlockID) error {
	s.blocksMu.Lock()
	defer s.blocksMu.Unlock()
	s.setBlock(p, id)
	return nil
}

// SetBiome записывает биом; biome.Absent удаляет запись
func (s *SparseView) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	s.biomesMu.Lock()
	defer s.biomesMu.Unlock()
	s.setBiome(p, b)
	return nil
}

func (s *SparseView) setBlock(p vec.Vec3, id block.BlockID) {
	if id == block.Absent {
		if remove(s.blocks, p) {
			s.blockBound = recompute(s.blocks)
		}
		return
	}
	put(s.blocks, p, id)
	s.blockBound.add(p)
}

func (s *SparseView) setBiome(p vec.Vec3, b biome.BiomeType) {
	if b == biome.Absent {
		if remove(s.biomes, p) {
			s.biomeBound = recompute(s.biomes)
		}
		return
	}
	put(s.biomes, p, b)
	s.biomeBound.add(p)
}

func put[T any](cols map[vec.Vec2]column[T], p vec.Vec3, v T) {
	col, ok := cols[key(p)]
	if !ok {
		col = make(column[T])
		cols[key(p)] = col
	}
	col[p.Y] = v
}

func remove[T any](cols map[vec.Vec2]column[T], p vec.Vec3) bool {
	col, ok := cols[key(p)]
	if !ok {
		return false
	}
	if _, ok := col[p.Y]; !ok {
		return false
	}
	delete(col, p.Y)
	if len(col) == 0 {
		delete(cols, key(p))
	}
	return true
}

func recompute[T any](cols map[vec.Vec2]column[T]) bounds {
	var b bounds
	for k, col := range cols {
		for y := range col {
			b.add(vec.Vec3{X: k.X, Y: y, Z: k.Y})
		}
	}
	return b
}

// Clear удаляет все записи внутри области a
func (s *SparseView) Clear(a area.Area) error {
	s.blocksMu.Lock()
	defer s.blocksMu.Unlock()
	s.biomesMu.Lock()
	defer s.biomesMu.Unlock()

	if clearColumns(s.blocks, a) {
		s.blockBound = recompute(s.blocks)
	}
	if clearColumns(s.biomes, a) {
		s.biomeBound = recompute(s.biomes)
	}
	return nil
}

func clearColumns[T any](cols map[vec.Vec2]column[T], a area.Area) bool {
	changed := false
	for k, col := range cols {
		for y := range col {
			if a.Contains(vec.Vec3{X: k.X, Y: y, Z: k.Y}) {
				delete(col, y)
				changed = true
			}
		}
		if len(col) == 0 {
			delete(cols, k)
		}
	}
	return changed
}

func (s *SparseView) Mutate(fn func(w Writer) error) error {
	s.blocksMu.Lock()
	defer s.blocksMu.Unlock()
	s.biomesMu.Lock()
	defer s.biomesMu.Unlock()

	return fn(sparseWriter{s})
}

type sparseWriter struct {
	s *SparseView
}

func (w sparseWriter) SetBlock(p vec.Vec3, id block.BlockID) error {
	w.s.setBlock(p, id)
	return nil
}

func (w sparseWriter) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	w.s.setBiome(p, b)
	return nil
}
