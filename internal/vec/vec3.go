package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// SectionShift: сдвиг для деления на размер ячейки
	SectionShift = 4
	// SectionSize: размер ячейки (секции/колонки) по каждой горизонтальной оси
	SectionSize = 1 << SectionShift
	sectionMask = SectionSize - 1
)

// Границы неограниченных областей. Берём int32, чтобы арифметика не переполнялась.
var (
	MinBound = Vec3{X: math.MinInt32, Y: math.MinInt32, Z: math.MinInt32}
	MaxBound = Vec3{X: math.MaxInt32, Y: math.MaxInt32, Z: math.MaxInt32}
)

// Vec3 представляет трехмерный вектор с целочисленными координатами (точка решётки)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Neg возвращает противоположный вектор
func (v Vec3) Neg() Vec3 {
	return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z}
}

// Min возвращает покомпонентный минимум
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{X: min(v.X, other.X), Y: min(v.Y, other.Y), Z: min(v.Z, other.Z)}
}

// Max возвращает покомпонентный максимум
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{X: max(v.X, other.X), Y: max(v.Y, other.Y), Z: max(v.Z, other.Z)}
}

// Less проверяет, что все компоненты строго меньше компонент other
func (v Vec3) Less(other Vec3) bool {
	return v.X < other.X && v.Y < other.Y && v.Z < other.Z
}

// Column возвращает координаты колонки чанка, содержащей точку
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X >> SectionShift, Y: v.Z >> SectionShift}
}

// Section возвращает координаты ячейки 16x16x16, содержащей точку
func (v Vec3) Section() Vec3 {
	return Vec3{X: v.X >> SectionShift, Y: v.Y >> SectionShift, Z: v.Z >> SectionShift}
}

// LocalInSection возвращает локальные координаты внутри ячейки
func (v Vec3) LocalInSection() Vec3 {
	return Vec3{X: v.X & sectionMask, Y: v.Y & sectionMask, Z: v.Z & sectionMask}
}

// ToFloat преобразует в вектор с плавающей точкой
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Floor выравнивает точку по решётке блоков (округление вниз, в том числе для отрицательных)
func (v Vec3Float) Floor() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// DistanceTo возвращает евклидово расстояние до другой точки
func (v Vec3Float) DistanceTo(other Vec3Float) float64 {
	return v.mgl().Sub(other.mgl()).Len()
}

func (v Vec3Float) mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}
