package vec

// Vec2 представляет 2D координаты. Для колонок чанков Y хранит ось Z мира.
type Vec2 struct {
	X, Y int
}

// Origin возвращает мировые координаты угла колонки (X, Z)
func (v Vec2) Origin() (int, int) {
	return v.X << SectionShift, v.Y << SectionShift
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// ChebyshevTo возвращает расстояние по максимальной оси (квадратный радиус прогрузки)
func (v Vec2) ChebyshevTo(other Vec2) int {
	dx := v.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := v.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
