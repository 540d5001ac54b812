// Package area реализует алгебру областей дискретной решётки: неизменяемые,
// возможно бесконечные множества точек и операции объединения, пересечения,
// исключения и инверсии над ними.
//
// Набор вариантов закрыт: Fill, Set, объединение, исключение, инверсия,
// пустая и полная область. Операции диспетчеризуются type switch'ем по этому набору.
package area

import (
	"errors"
	"math"

	"github.com/annel0/blockverse/internal/vec"
)

// Infinite: размер неограниченной области
const Infinite int64 = math.MaxInt64

var (
	// ErrDisconnected возвращается при создании Set из несвязного набора точек
	ErrDisconnected = errors.New("area: points do not form a single 6-connected component")
	// ErrUnbounded сигнализирует об операции, требующей ограниченной области
	ErrUnbounded = errors.New("area: operation requires a bounded area")
)

// Area описывает множество точек решётки. Реализации неизменяемы.
//
// Min и Max: покомпонентные границы (Min включительно, Max исключительно).
// Для неограниченных областей возвращаются vec.MinBound/vec.MaxBound,
// по ним нельзя выделять память.
type Area interface {
	Contains(p vec.Vec3) bool
	Size() int64
	Min() vec.Vec3
	Max() vec.Vec3

	sealed()
}

type emptyArea struct{}

func (emptyArea) Contains(vec.Vec3) bool { return false }
func (emptyArea) Size() int64            { return 0 }
func (emptyArea) Min() vec.Vec3          { return vec.Vec3{} }
func (emptyArea) Max() vec.Vec3          { return vec.Vec3{} }
func (emptyArea) String() string         { return "Empty" }
func (emptyArea) sealed()                {}

type fullArea struct{}

func (fullArea) Contains(vec.Vec3) bool { return true }
func (fullArea) Size() int64            { return Infinite }
func (fullArea) Min() vec.Vec3          { return vec.MinBound }
func (fullArea) Max() vec.Vec3          { return vec.MaxBound }
func (fullArea) String() string         { return "Full" }
func (fullArea) sealed()                {}

// Empty возвращает пустую область
func Empty() Area { return emptyArea{} }

// Full возвращает всю решётку
func Full() Area { return fullArea{} }

// Bounded сообщает, конечна ли область
func Bounded(a Area) bool {
	switch x := a.(type) {
	case emptyArea, Fill, *Set:
		return true
	case fullArea, *inverted:
		return false
	case *union:
		return x.bounded
	case *excluded:
		return Bounded(x.src)
	}
	return false
}

// IsEmpty сообщает, что область не содержит ни одной точки
func IsEmpty(a Area) bool {
	switch x := a.(type) {
	case emptyArea:
		return true
	case Fill:
		return x.Size() == 0
	case fullArea, *inverted:
		return false
	case *union:
		// Объединение пусто, только если пусты все дети
		for _, c := range x.children {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	}
	return a.Size() == 0
}

// hull возвращает дешёвую оболочку области без обхода точек
func hull(a Area) (vec.Vec3, vec.Vec3) {
	if x, ok := a.(*excluded); ok {
		return hull(x.src)
	}
	return a.Min(), a.Max()
}

func hullsIntersect(a, b Area) bool {
	amin, amax := hull(a)
	bmin, bmax := hull(b)
	return amin.Less(bmax) && bmin.Less(amax)
}
