package area

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/annel0/blockverse/internal/vec"
)

var neighbours = [6]vec.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// Set: явный конечный набор точек, образующий одну 6-связную компоненту
type Set struct {
	points map[vec.Vec3]struct{}
	sorted []vec.Vec3
	min    vec.Vec3
	max    vec.Vec3
}

// NewSet создаёт область из набора точек. Точки должны образовывать одну
// 6-связную компоненту, иначе возвращается ErrDisconnected.
// Для произвольного набора точек используйте Scatter.
func NewSet(points ...vec.Vec3) (Area, error) {
	uniq := dedupe(points)
	if len(uniq) == 0 {
		return Empty(), nil
	}
	if len(components(uniq)) != 1 {
		return nil, fmt.Errorf("%w: %d points", ErrDisconnected, len(uniq))
	}
	return newSet(uniq), nil
}

// Scatter строит область из произвольного набора точек, разбивая его
// на связные компоненты и объединяя их.
func Scatter(points ...vec.Vec3) Area {
	uniq := dedupe(points)
	parts := make([]Area, 0, 1)
	for _, comp := range components(uniq) {
		if len(comp) == 1 {
			for p := range comp {
				parts = append(parts, Single(p))
			}
			continue
		}
		parts = append(parts, newSet(comp))
	}
	return Union(parts...)
}

func dedupe(points []vec.Vec3) map[vec.Vec3]struct{} {
	uniq := make(map[vec.Vec3]struct{}, len(points))
	for _, p := range points {
		uniq[p] = struct{}{}
	}
	return uniq
}

// components разбивает множество точек на 6-связные компоненты обходом в ширину
func components(points map[vec.Vec3]struct{}) []map[vec.Vec3]struct{} {
	visited := make(map[vec.Vec3]struct{}, len(points))
	var result []map[vec.Vec3]struct{}

	// Стартуем в детерминированном порядке, чтобы результат не зависел от обхода map
	for _, start := range sortPoints(points) {
		if _, seen := visited[start]; seen {
			continue
		}
		comp := map[vec.Vec3]struct{}{start: {}}
		visited[start] = struct{}{}
		queue := []vec.Vec3{start}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, d := range neighbours {
				n := p.Add(d)
				if _, ok := points[n]; !ok {
					continue
				}
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				comp[n] = struct{}{}
				queue = append(queue, n)
			}
		}
		result = append(result, comp)
	}
	return result
}

// sortPoints упорядочивает точки в порядке обхода Fill: y, затем z, затем x
func sortPoints(points map[vec.Vec3]struct{}) []vec.Vec3 {
	sorted := make([]vec.Vec3, 0, len(points))
	for p := range points {
		sorted = append(sorted, p)
	}
	slices.SortFunc(sorted, func(a, b vec.Vec3) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return sorted
}

// newSet не проверяет связность: вызывающий гарантирует её сам
func newSet(points map[vec.Vec3]struct{}) *Set {
	s := &Set{points: points, sorted: sortPoints(points)}
	s.min, s.max = s.sorted[0], s.sorted[0]
	for _, p := range s.sorted {
		s.min = s.min.Min(p)
		s.max = s.max.Max(p)
	}
	s.max = s.max.Add(vec.Vec3{X: 1, Y: 1, Z: 1})
	return s
}

// filter возвращает точки набора, удовлетворяющие условию, разбитые на компоненты
func (s *Set) filter(keep func(vec.Vec3) bool) Area {
	kept := make([]vec.Vec3, 0, len(s.sorted))
	for _, p := range s.sorted {
		if keep(p) {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(s.sorted) {
		return s
	}
	return Scatter(kept...)
}

func (s *Set) translate(offset vec.Vec3) *Set {
	moved := make(map[vec.Vec3]struct{}, len(s.points))
	for p := range s.points {
		moved[p.Add(offset)] = struct{}{}
	}
	return newSet(moved)
}

func (s *Set) Contains(p vec.Vec3) bool {
	_, ok := s.points[p]
	return ok
}

func (s *Set) Size() int64   { return int64(len(s.points)) }
func (s *Set) Min() vec.Vec3 { return s.min }
func (s *Set) Max() vec.Vec3 { return s.max }

func (s *Set) String() string {
	return fmt.Sprintf("Set(%d points in [%v..%v))", len(s.points), s.min, s.max)
}

func (*Set) sealed() {}
