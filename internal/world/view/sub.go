package view

import (
	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// SubView ограничивает вид областью. Чтение вне ограничения возвращает
// отсутствие и не доходит до исходного вида.
type SubView struct {
	src      View
	restrict area.Area
}

// NewSubView создаёт ограниченный вид. Вложенные ограничения сливаются в одно.
func NewSubView(src View, restrict area.Area) *SubView {
	if inner, ok := src.(*SubView); ok {
		return &SubView{src: inner.src, restrict: area.Overlap(inner.restrict, restrict)}
	}
	return &SubView{src: src, restrict: restrict}
}

// Source возвращает исходный вид
func (s *SubView) Source() View { return s.src }

// Restriction возвращает ограничивающую область
func (s *SubView) Restriction() area.Area { return s.restrict }

func (s *SubView) Area() area.Area {
	return area.Overlap(s.src.Area(), s.restrict)
}

func (s *SubView) Block(p vec.Vec3) (block.BlockID, error) {
	if !s.restrict.Contains(p) {
		return block.Absent, nil
	}
	return s.src.Block(p)
}

func (s *SubView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	if !s.restrict.Contains(p) {
		return biome.Absent, nil
	}
	return s.src.Biome(p)
}

// MutableSubView ограничивает изменяемый вид областью.
// Любое обращение вне ограничения возвращает ErrOutOfBounds.
type MutableSubView struct {
	src      Mutable
	restrict area.Area
}

// NewMutableSubView создаёт ограниченный изменяемый вид
func NewMutableSubView(src Mutable, restrict area.Area) *MutableSubView {
	return &MutableSubView{src: src, restrict: restrict}
}

func (s *MutableSubView) Area() area.Area {
	return area.Overlap(s.src.Area(), s.restrict)
}

func (s *MutableSubView) Block(p vec.Vec3) (block.BlockID, error) {
	if !s.restrict.Contains(p) {
		return block.Absent, outOfBounds(p)
	}
	return s.src.Block(p)
}

func (s *MutableSubView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	if !s.restrict.Contains(p) {
		return biome.Absent, outOfBounds(p)
	}
	return s.src.Biome(p)
}

func (s *MutableSubView) SetBlock(p vec.Vec3, id block.BlockID) error {
	if !s.restrict.Contains(p) {
		return outOfBounds(p)
	}
	return s.src.SetBlock(p, id)
}

func (s *MutableSubView) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	if !s.restrict.Contains(p) {
		return outOfBounds(p)
	}
	return s.src.SetBiome(p, b)
}

// Clear очищает только часть a внутри ограничения
func (s *MutableSubView) Clear(a area.Area) error {
	return s.src.Clear(area.Overlap(a, s.restrict))
}

func (s *MutableSubView) Mutate(fn func(w Writer) error) error {
	return s.src.Mutate(func(w Writer) error {
		return fn(restrictedWriter{w: w, restrict: s.restrict})
	})
}

type restrictedWriter struct {
	w        Writer
	restrict area.Area
}

func (r restrictedWriter) SetBlock(p vec.Vec3, id block.BlockID) error {
	if !r.restrict.Contains(p) {
		return outOfBounds(p)
	}
	return r.w.SetBlock(p, id)
}

func (r restrictedWriter) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	if !r.restrict.Contains(p) {
		return outOfBounds(p)
	}
	return r.w.SetBiome(p, b)
}
