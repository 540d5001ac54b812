package view

import (
	"fmt"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// Copy переносит присутствующие значения src в области a в dst.
// Если dst изменяемый, запись идёт одним пакетом.
func Copy(dst Writer, src View, a area.Area) error {
	region := area.Overlap(a, src.Area())
	if !area.Bounded(region) {
		return fmt.Errorf("copy: %w", area.ErrUnbounded)
	}
	if m, ok := dst.(Mutable); ok {
		return m.Mutate(func(w Writer) error {
			return copyPoints(w, src, region)
		})
	}
	return copyPoints(dst, src, region)
}

func copyPoints(dst Writer, src View, region area.Area) error {
	for p := range area.Points(region) {
		id, err := src.Block(p)
		if err != nil {
			return err
		}
		if id != block.Absent {
			if err := dst.SetBlock(p, id); err != nil {
				return err
			}
		}
		b, err := src.Biome(p)
		if err != nil {
			return err
		}
		if b != biome.Absent {
			if err := dst.SetBiome(p, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// Materialize копирует область вида в новый разреженный вид
func Materialize(src View, a area.Area) (*SparseView, error) {
	out := NewSparseView()
	if err := Copy(out, src, a); err != nil {
		return nil, err
	}
	return out, nil
}

// Fill записывает один блок во все точки области
func Fill(dst Mutable, a area.Area, id block.BlockID) error {
	if !area.Bounded(a) {
		return fmt.Errorf("fill: %w", area.ErrUnbounded)
	}
	return dst.Mutate(func(w Writer) error {
		for p := range area.Points(a) {
			if err := w.SetBlock(p, id); err != nil {
				return err
			}
		}
		return nil
	})
}
