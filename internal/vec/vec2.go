package vec

import "math"

// Vec2 представляет 2D координаты (в ядре мира: колонка чанков X/Z)
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	return math.Sqrt(float64(v.DistanceSq(other)))
}

// DistanceSq возвращает квадрат расстояния (без извлечения корня)
func (v Vec2) DistanceSq(other Vec2) int {
	dx := v.X - other.X
	dy := v.Y - other.Y
	return dx*dx + dy*dy
}

// Chebyshev возвращает max(|dx|, |dy|): "квадратное" расстояние окна загрузки
func (v Vec2) Chebyshev(other Vec2) int {
	return max(Abs(v.X-other.X), Abs(v.Y-other.Y))
}
