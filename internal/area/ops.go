package area

import "github.com/annel0/blockverse/internal/vec"

// Overlap возвращает пересечение двух областей.
// Пересечение с объединением считается по каждому ребёнку и объединяется заново.
func Overlap(a, b Area) Area {
	if IsEmpty(a) || IsEmpty(b) {
		return Empty()
	}
	if _, ok := a.(fullArea); ok {
		return b
	}
	if _, ok := b.(fullArea); ok {
		return a
	}

	if r, ok := overlapComposite(a, b); ok {
		return r
	}
	if r, ok := overlapComposite(b, a); ok {
		return r
	}

	// Здесь остались только Fill и Set
	if !hullsIntersect(a, b) {
		return Empty()
	}
	switch x := a.(type) {
	case Fill:
		switch y := b.(type) {
		case Fill:
			if f := x.Intersect(y); f.Size() > 0 {
				return f
			}
			return Empty()
		case *Set:
			return y.filter(x.Contains)
		}
	case *Set:
		return x.filter(b.Contains)
	}
	return Empty()
}

func overlapComposite(a, b Area) (Area, bool) {
	switch x := a.(type) {
	case *union:
		parts := make([]Area, 0, len(x.children))
		for _, c := range x.children {
			parts = append(parts, Overlap(c, b))
		}
		return Union(parts...), true
	case *inverted:
		if y, ok := b.(*inverted); ok {
			return Invert(Union(x.src, y.src)), true
		}
		return Exclude(b, x.src), true
	case *excluded:
		return Exclude(Overlap(x.src, b), x.ex), true
	}
	return nil, false
}

// Intersection пересекает области слева направо. Без аргументов возвращает пустую область.
func Intersection(areas ...Area) Area {
	if len(areas) == 0 {
		return Empty()
	}
	result := areas[0]
	for _, a := range areas[1:] {
		result = Overlap(result, a)
	}
	return result
}

// OverlapCount возвращает число общих точек двух областей
func OverlapCount(a, b Area) int64 {
	return Overlap(a, b).Size()
}

// Overlaps проверяет наличие хотя бы одной общей точки
func Overlaps(a, b Area) bool {
	if Bounded(a) && Bounded(b) && !hullsIntersect(a, b) {
		return false
	}
	if fa, ok := a.(Fill); ok {
		if fb, ok := b.(Fill); ok {
			return fa.Intersect(fb).Size() > 0
		}
	}
	return !IsEmpty(Overlap(a, b))
}

// ContainsArea проверяет, что каждая точка b лежит в a.
// Общий случай эквивалентен |a ∪ b| == |a| и считается как |b \ a| == 0,
// поэтому для больших несоставных областей он дорог, и сначала пробуются структурные проверки.
func ContainsArea(a, b Area) bool {
	if IsEmpty(b) {
		return true
	}
	switch x := a.(type) {
	case fullArea:
		return true
	case emptyArea:
		return false
	case Fill:
		if y, ok := b.(Fill); ok {
			return x.ContainsFill(y)
		}
		if Bounded(b) {
			bmin, bmax := hull(b)
			if x.ContainsFill(NewFill(bmin, bmax)) {
				return true
			}
		}
	}
	if _, ok := b.(fullArea); ok {
		return false
	}
	return Exclude(b, a).Size() == 0
}

// Equal проверяет, что области содержат одинаковые точки
func Equal(a, b Area) bool {
	return ContainsArea(a, b) && ContainsArea(b, a)
}

// Translate сдвигает область на вектор offset
func Translate(a Area, offset vec.Vec3) Area {
	if offset == (vec.Vec3{}) {
		return a
	}
	switch x := a.(type) {
	case Fill:
		return Fill{min: x.min.Add(offset), max: x.max.Add(offset)}
	case *Set:
		return x.translate(offset)
	case *union:
		parts := make([]Area, len(x.children))
		for i, c := range x.children {
			parts[i] = Translate(c, offset)
		}
		return Union(parts...)
	case *excluded:
		return &excluded{src: Translate(x.src, offset), ex: Translate(x.ex, offset)}
	case *inverted:
		return Invert(Translate(x.src, offset))
	}
	// Пустая и полная области инвариантны к сдвигу
	return a
}
