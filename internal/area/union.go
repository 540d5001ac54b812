package area

import (
	"fmt"
	"strings"
	"sync"

	"github.com/annel0/blockverse/internal/vec"
)

// union: логическое объединение дочерних областей
type union struct {
	children []Area
	bounded  bool
	min, max vec.Vec3

	sizeOnce sync.Once
	size     int64
}

// Union объединяет области. Вложенные объединения разворачиваются,
// пустые области отбрасываются. Без аргументов возвращает пустую область.
func Union(areas ...Area) Area {
	children := make([]Area, 0, len(areas))
	for _, a := range areas {
		switch x := a.(type) {
		case nil, emptyArea:
			continue
		case fullArea:
			return Full()
		case *union:
			children = append(children, x.children...)
		case Fill:
			if x.Size() > 0 {
				children = append(children, x)
			}
		default:
			children = append(children, a)
		}
	}

	switch len(children) {
	case 0:
		return Empty()
	case 1:
		return children[0]
	}

	u := &union{children: children, bounded: true}
	first := true
	for _, c := range children {
		if !Bounded(c) {
			u.bounded = false
			continue
		}
		cmin, cmax := hull(c)
		if first {
			u.min, u.max = cmin, cmax
			first = false
			continue
		}
		u.min = u.min.Min(cmin)
		u.max = u.max.Max(cmax)
	}
	if !u.bounded {
		u.min, u.max = vec.MinBound, vec.MaxBound
	}
	return u
}

func (u *union) Contains(p vec.Vec3) bool {
	if u.bounded && !(p.X >= u.min.X && p.Y >= u.min.Y && p.Z >= u.min.Z && p.Less(u.max)) {
		return false
	}
	for _, c := range u.children {
		if c.Contains(p) {
			return true
		}
	}
	return false
}

// Size считает точное число точек по разложению на непересекающиеся параллелепипеды
func (u *union) Size() int64 {
	u.sizeOnce.Do(func() {
		if !u.bounded {
			u.size = Infinite
			return
		}
		u.size = sizeOf(disjointFills(u))
	})
	return u.size
}

// disjointFills раскладывает конечную область на непересекающиеся Fill.
// Каждый новый кусок вычитается из уже накопленных, поэтому повторяющиеся
// и вложенные дети исчезают сразу, без пересчёта объединений префиксов.
func disjointFills(a Area) []Fill {
	switch x := a.(type) {
	case Fill:
		if x.Size() > 0 {
			return []Fill{x}
		}
		return nil
	case *Set:
		out := make([]Fill, 0, len(x.points))
		for p := range x.points {
			out = append(out, Single(p))
		}
		return out
	case *union:
		var acc []Fill
		for _, c := range x.children {
			for _, piece := range disjointFills(c) {
				acc = append(acc, cutAll([]Fill{piece}, acc)...)
			}
		}
		return acc
	case *excluded:
		rest := disjointFills(x.src)
		if len(rest) == 0 {
			return nil
		}
		// Вычитаемое обрезается оболочкой источника, так оно всегда конечно
		lo, hi := hull(x.src)
		return cutAll(rest, disjointFills(Overlap(x.ex, NewFill(lo, hi))))
	}
	return nil
}

// cutAll вычитает из кусков pieces все куски cuts
func cutAll(pieces, cuts []Fill) []Fill {
	for _, c := range cuts {
		if len(pieces) == 0 {
			return nil
		}
		next := pieces[:0:0]
		for _, p := range pieces {
			if p.Intersect(c).Size() == 0 {
				next = append(next, p)
				continue
			}
			next = append(next, p.minus(c)...)
		}
		pieces = next
	}
	return pieces
}

func sizeOf(fills []Fill) int64 {
	var total int64
	for _, f := range fills {
		total += f.Size()
	}
	return total
}

func (u *union) Min() vec.Vec3 { return u.min }
func (u *union) Max() vec.Vec3 { return u.max }

// Children возвращает копию списка дочерних областей
func (u *union) Children() []Area {
	out := make([]Area, len(u.children))
	copy(out, u.children)
	return out
}

func (u *union) String() string {
	parts := make([]string, len(u.children))
	for i, c := range u.children {
		parts[i] = fmt.Sprint(c)
	}
	return "Union(" + strings.Join(parts, ", ") + ")"
}

func (*union) sealed() {}

// Children раскладывает объединение на дочерние области; для остальных вариантов
// возвращает саму область (или ничего для пустой)
func Children(a Area) []Area {
	switch x := a.(type) {
	case *union:
		return x.Children()
	case emptyArea:
		return nil
	}
	return []Area{a}
}
