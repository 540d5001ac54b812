package area

import (
	"fmt"

	"github.com/annel0/blockverse/internal/vec"
)

// Fill: прямоугольный параллелепипед [min, max)
type Fill struct {
	min vec.Vec3
	max vec.Vec3
}

// NewFill создаёт область по включительному минимуму и исключительному максимуму
func NewFill(min, max vec.Vec3) Fill {
	return Fill{min: min, max: max}
}

// Box создаёт область по двум включительным углам в любом порядке
func Box(x1, y1, z1, x2, y2, z2 int) Fill {
	a := vec.Vec3{X: x1, Y: y1, Z: z1}
	b := vec.Vec3{X: x2, Y: y2, Z: z2}
	return NewFill(a.Min(b), a.Max(b).Add(vec.Vec3{X: 1, Y: 1, Z: 1}))
}

// Single возвращает область из одной точки
func Single(p vec.Vec3) Fill {
	return NewFill(p, p.Add(vec.Vec3{X: 1, Y: 1, Z: 1}))
}

// SectionArea возвращает ячейку 16x16x16 с указанными координатами ячейки
func SectionArea(cell vec.Vec3) Fill {
	min := vec.Vec3{X: cell.X << vec.SectionShift, Y: cell.Y << vec.SectionShift, Z: cell.Z << vec.SectionShift}
	return NewFill(min, min.Add(vec.Vec3{X: vec.SectionSize, Y: vec.SectionSize, Z: vec.SectionSize}))
}

// ColumnArea возвращает колонку чанка на всю высоту измерения [minY, maxY)
func ColumnArea(col vec.Vec2, minY, maxY int) Fill {
	x, z := col.Origin()
	return NewFill(
		vec.Vec3{X: x, Y: minY, Z: z},
		vec.Vec3{X: x + vec.SectionSize, Y: maxY, Z: z + vec.SectionSize},
	)
}

// Contains проверяет min <= p < max покомпонентно
func (f Fill) Contains(p vec.Vec3) bool {
	return p.X >= f.min.X && p.X < f.max.X &&
		p.Y >= f.min.Y && p.Y < f.max.Y &&
		p.Z >= f.min.Z && p.Z < f.max.Z
}

// Size возвращает Δx·Δy·Δz или 0, если хотя бы одна сторона не положительна
func (f Fill) Size() int64 {
	d := f.max.Sub(f.min)
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		return 0
	}
	return int64(d.X) * int64(d.Y) * int64(d.Z)
}

func (f Fill) Min() vec.Vec3 { return f.min }
func (f Fill) Max() vec.Vec3 { return f.max }

// Extent возвращает размеры по осям
func (f Fill) Extent() vec.Vec3 { return f.max.Sub(f.min) }

// Intersect возвращает пересечение двух параллелепипедов (возможно нулевого объёма)
func (f Fill) Intersect(other Fill) Fill {
	return Fill{min: f.min.Max(other.min), max: f.max.Min(other.max)}
}

// ContainsFill проверяет вложенность other в f
func (f Fill) ContainsFill(other Fill) bool {
	if other.Size() == 0 {
		return true
	}
	return f.min.X <= other.min.X && f.min.Y <= other.min.Y && f.min.Z <= other.min.Z &&
		other.max.X <= f.max.X && other.max.Y <= f.max.Y && other.max.Z <= f.max.Z
}

func (f Fill) String() string {
	return fmt.Sprintf("Fill[%v..%v)", f.min, f.max)
}

func (Fill) sealed() {}

// subtract возвращает f \ cut в виде не более чем шести непересекающихся кусков
func (f Fill) subtract(cut Fill) []Area {
	pieces := f.minus(cut)
	out := make([]Area, len(pieces))
	for i, p := range pieces {
		out[i] = p
	}
	return out
}

func (f Fill) minus(cut Fill) []Fill {
	c := f.Intersect(cut)
	if c.Size() == 0 {
		return []Fill{f}
	}
	pieces := make([]Fill, 0, 6)
	add := func(p Fill) {
		if p.Size() > 0 {
			pieces = append(pieces, p)
		}
	}
	// Слои ниже и выше пересечения на всю ширину
	add(Fill{min: f.min, max: vec.Vec3{X: f.max.X, Y: c.min.Y, Z: f.max.Z}})
	add(Fill{min: vec.Vec3{X: f.min.X, Y: c.max.Y, Z: f.min.Z}, max: f.max})
	// Полосы по Z внутри высоты пересечения
	add(Fill{min: vec.Vec3{X: f.min.X, Y: c.min.Y, Z: f.min.Z}, max: vec.Vec3{X: f.max.X, Y: c.max.Y, Z: c.min.Z}})
	add(Fill{min: vec.Vec3{X: f.min.X, Y: c.min.Y, Z: c.max.Z}, max: vec.Vec3{X: f.max.X, Y: c.max.Y, Z: f.max.Z}})
	// Остатки по X
	add(Fill{min: vec.Vec3{X: f.min.X, Y: c.min.Y, Z: c.min.Z}, max: vec.Vec3{X: c.min.X, Y: c.max.Y, Z: c.max.Z}})
	add(Fill{min: vec.Vec3{X: c.max.X, Y: c.min.Y, Z: c.min.Z}, max: vec.Vec3{X: f.max.X, Y: c.max.Y, Z: c.max.Z}})
	return pieces
}
