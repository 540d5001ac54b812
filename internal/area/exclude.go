package area

import (
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/vec"
)

// excluded: разность src \ ex
type excluded struct {
	src Area
	ex  Area

	boundsOnce sync.Once
	min, max   vec.Vec3

	sizeOnce sync.Once
	size     int64
}

// inverted: дополнение области до всей решётки
type inverted struct {
	src Area
}

// Exclude возвращает разность src \ ex.
//
// Области, построенные из Fill, остаются в виде объединения параллелепипедов:
// разность двух Fill раскладывается максимум на шесть кусков.
func Exclude(src, ex Area) Area {
	if IsEmpty(src) {
		return Empty()
	}
	if IsEmpty(ex) {
		return src
	}

	switch e := ex.(type) {
	case fullArea:
		return Empty()
	case *inverted:
		return Overlap(src, e.src)
	}

	switch s := src.(type) {
	case fullArea:
		return Invert(ex)
	case *inverted:
		return Invert(Union(s.src, ex))
	case *union:
		parts := make([]Area, len(s.children))
		for i, c := range s.children {
			parts[i] = Exclude(c, ex)
		}
		return Union(parts...)
	}

	if Bounded(src) && !hullsIntersect(src, ex) {
		return src
	}

	switch s := src.(type) {
	case Fill:
		switch e := ex.(type) {
		case Fill:
			return Union(s.subtract(e)...)
		case *union:
			var rest Area = s
			for _, c := range e.children {
				rest = Exclude(rest, c)
			}
			return rest
		}
	case *Set:
		return s.filter(func(p vec.Vec3) bool { return !ex.Contains(p) })
	case *excluded:
		return &excluded{src: s.src, ex: Union(s.ex, ex)}
	}
	return &excluded{src: src, ex: ex}
}

// Invert возвращает дополнение области. Повторная инверсия возвращает исходную область.
func Invert(a Area) Area {
	switch x := a.(type) {
	case emptyArea:
		return Full()
	case fullArea:
		return Empty()
	case *inverted:
		return x.src
	}
	if IsEmpty(a) {
		return Full()
	}
	return &inverted{src: a}
}

func (e *excluded) Contains(p vec.Vec3) bool {
	return e.src.Contains(p) && !e.ex.Contains(p)
}

func (e *excluded) Size() int64 {
	e.sizeOnce.Do(func() {
		if !Bounded(e.src) {
			e.size = Infinite
			return
		}
		e.size = e.src.Size() - OverlapCount(e.src, e.ex)
	})
	return e.size
}

// Min и Max: границы отфильтрованного набора точек; для конечной области
// вычисляются один раз обходом точек.
func (e *excluded) Min() vec.Vec3 {
	e.computeBounds()
	return e.min
}

func (e *excluded) Max() vec.Vec3 {
	e.computeBounds()
	return e.max
}

func (e *excluded) computeBounds() {
	e.boundsOnce.Do(func() {
		if !Bounded(e.src) {
			e.min, e.max = vec.MinBound, vec.MaxBound
			return
		}
		first := true
		walk(e, func(p vec.Vec3) bool {
			if first {
				e.min, e.max = p, p
				first = false
				return true
			}
			e.min = e.min.Min(p)
			e.max = e.max.Max(p)
			return true
		})
		if !first {
			e.max = e.max.Add(vec.Vec3{X: 1, Y: 1, Z: 1})
		}
	})
}

func (e *excluded) String() string {
	return fmt.Sprintf("Exclude(%v, %v)", e.src, e.ex)
}

func (*excluded) sealed() {}

func (i *inverted) Contains(p vec.Vec3) bool { return !i.src.Contains(p) }
func (i *inverted) Size() int64              { return Infinite }
func (i *inverted) Min() vec.Vec3            { return vec.MinBound }
func (i *inverted) Max() vec.Vec3            { return vec.MaxBound }
func (i *inverted) String() string           { return fmt.Sprintf("Invert(%v)", i.src) }
func (*inverted) sealed()                    {}
