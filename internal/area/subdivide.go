package area

import (
	"fmt"

	"github.com/annel0/blockverse/internal/vec"
)

// Subdivide раскладывает ограниченную область на параллелепипеды, выровненные
// по ячейкам 16x16x16. Ни один кусок не пересекает границу ячейки,
// внутри ячейки соседние строки сливаются в максимально крупные блоки.
// Для неограниченной области вызывает панику с ErrUnbounded.
func Subdivide(a Area) []Fill {
	if !Bounded(a) {
		panic(fmt.Errorf("%w: cannot subdivide %v", ErrUnbounded, a))
	}
	if IsEmpty(a) {
		return nil
	}

	amin, amax := hull(a)
	lo := amin.Section()
	hi := amax.Sub(vec.Vec3{X: 1, Y: 1, Z: 1}).Section()

	var pieces []Fill
	for cy := lo.Y; cy <= hi.Y; cy++ {
		for cz := lo.Z; cz <= hi.Z; cz++ {
			for cx := lo.X; cx <= hi.X; cx++ {
				cell := SectionArea(vec.Vec3{X: cx, Y: cy, Z: cz})
				switch piece := Overlap(cell, a).(type) {
				case emptyArea:
				case Fill:
					pieces = append(pieces, piece)
				default:
					pieces = append(pieces, boxes(piece)...)
				}
			}
		}
	}
	return pieces
}

// Sections возвращает координаты ячеек, которые пересекает область
func Sections(a Area) []vec.Vec3 {
	seen := make(map[vec.Vec3]struct{})
	var cells []vec.Vec3
	for _, piece := range Subdivide(a) {
		cell := piece.Min().Section()
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		cells = append(cells, cell)
	}
	return cells
}

// Columns возвращает координаты колонок чанков, которые пересекает область
func Columns(a Area) []vec.Vec2 {
	seen := make(map[vec.Vec2]struct{})
	var cols []vec.Vec2
	for _, piece := range Subdivide(a) {
		col := piece.Min().Column()
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	return cols
}

type rect struct {
	x0, x1, z0, z1 int
}

// boxes жадно собирает небольшую область (не больше одной ячейки) в параллелепипеды:
// отрезки по X сливаются по Z внутри слоя, одинаковые прямоугольники сливаются по Y.
func boxes(a Area) []Fill {
	amin, amax := a.Min(), a.Max()

	var result []Fill
	open := make(map[rect]int) // прямоугольник -> индекс в result, продолжаемый по Y

	for y := amin.Y; y < amax.Y; y++ {
		var layer []rect
		active := make(map[[2]int]int) // [x0,x1) -> индекс в layer для слияния по Z
		for z := amin.Z; z < amax.Z; z++ {
			next := make(map[[2]int]int)
			for x := amin.X; x < amax.X; {
				if !a.Contains(vec.Vec3{X: x, Y: y, Z: z}) {
					x++
					continue
				}
				start := x
				for x < amax.X && a.Contains(vec.Vec3{X: x, Y: y, Z: z}) {
					x++
				}
				key := [2]int{start, x}
				if idx, ok := active[key]; ok && layer[idx].z1 == z {
					layer[idx].z1 = z + 1
					next[key] = idx
					continue
				}
				layer = append(layer, rect{x0: start, x1: x, z0: z, z1: z + 1})
				next[key] = len(layer) - 1
			}
			active = next
		}

		nextOpen := make(map[rect]int, len(layer))
		for _, r := range layer {
			if idx, ok := open[r]; ok && result[idx].max.Y == y {
				result[idx].max.Y = y + 1
				nextOpen[r] = idx
				continue
			}
			result = append(result, NewFill(
				vec.Vec3{X: r.x0, Y: y, Z: r.z0},
				vec.Vec3{X: r.x1, Y: y + 1, Z: r.z1},
			))
			nextOpen[r] = len(result) - 1
		}
		open = nextOpen
	}
	return result
}
