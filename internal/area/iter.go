package area

import (
	"fmt"
	"iter"

	"github.com/annel0/blockverse/internal/vec"
)

// Points возвращает ленивую последовательность точек ограниченной области.
// Каждый новый range проходит область заново.
//
// Fill обходится с самым быстрым X, затем Z, затем Y. Объединение сцепляет детей,
// пропуская точки, уже выданные предыдущими детьми. Исключение фильтрует источник.
// Для неограниченной области вызывает панику с ErrUnbounded.
func Points(a Area) iter.Seq[vec.Vec3] {
	if !Bounded(a) {
		panic(fmt.Errorf("%w: cannot iterate %v", ErrUnbounded, a))
	}
	return func(yield func(vec.Vec3) bool) {
		walk(a, yield)
	}
}

// walk возвращает false, если обход был прерван
func walk(a Area, yield func(vec.Vec3) bool) bool {
	switch x := a.(type) {
	case Fill:
		if x.Size() == 0 {
			return true
		}
		for y := x.min.Y; y < x.max.Y; y++ {
			for z := x.min.Z; z < x.max.Z; z++ {
				for px := x.min.X; px < x.max.X; px++ {
					if !yield(vec.Vec3{X: px, Y: y, Z: z}) {
						return false
					}
				}
			}
		}
	case *Set:
		for _, p := range x.sorted {
			if !yield(p) {
				return false
			}
		}
	case *union:
		for i, c := range x.children {
			earlier := x.children[:i]
			ok := walk(c, func(p vec.Vec3) bool {
				for _, e := range earlier {
					if e.Contains(p) {
						return true
					}
				}
				return yield(p)
			})
			if !ok {
				return false
			}
		}
	case *excluded:
		return walk(x.src, func(p vec.Vec3) bool {
			if x.ex.Contains(p) {
				return true
			}
			return yield(p)
		})
	}
	return true
}

// Collect материализует точки ограниченной области
func Collect(a Area) []vec.Vec3 {
	out := make([]vec.Vec3, 0, max(0, min(a.Size(), 1<<16)))
	for p := range Points(a) {
		out = append(out, p)
	}
	return out
}
