package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Размеры игрока в блоках
const (
	PlayerWidth  = 0.6
	PlayerHeight = 1.8
)

// epsilon отделяет касание грани от пересечения
const epsilon = 1e-6

// Axis ось перемещения
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// AABB выровненный по осям параллелепипед в мировых координатах
type AABB struct {
	Min, Max mgl64.Vec3
}

// NewAABB создаёт коробку по двум углам (порядок не важен)
func NewAABB(a, b mgl64.Vec3) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])},
		Max: mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])},
	}
}

// BoxAt создаёт коробку шириной width и высотой height, стоящую ногами в feet
func BoxAt(feet mgl64.Vec3, width, height float64) AABB {
	hw := width / 2
	return AABB{
		Min: mgl64.Vec3{feet[0] - hw, feet[1], feet[2] - hw},
		Max: mgl64.Vec3{feet[0] + hw, feet[1] + height, feet[2] + hw},
	}
}

// PlayerBox возвращает коробку игрока
func PlayerBox(feet mgl64.Vec3) AABB {
	return BoxAt(feet, PlayerWidth, PlayerHeight)
}

// BlockBox возвращает куб блока с минимальным углом (x, y, z)
func BlockBox(x, y, z int) AABB {
	min := mgl64.Vec3{float64(x), float64(y), float64(z)}
	return AABB{Min: min, Max: min.Add(mgl64.Vec3{1, 1, 1})}
}

// Feet возвращает точку в центре нижней грани
func (b AABB) Feet() mgl64.Vec3 {
	return mgl64.Vec3{(b.Min[0] + b.Max[0]) / 2, b.Min[1], (b.Min[2] + b.Max[2]) / 2}
}

// Size возвращает размеры коробки
func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Translate сдвигает коробку
func (b AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Offset сдвигает коробку вдоль одной оси
func (b AABB) Offset(axis Axis, d float64) AABB {
	b.Min[axis] += d
	b.Max[axis] += d
	return b
}

// Intersects проверяет строгое пересечение (касание гранями не считается)
func (b AABB) Intersects(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] <= o.Min[i]+epsilon || b.Min[i] >= o.Max[i]-epsilon {
			return false
		}
	}
	return true
}

// cellRange возвращает диапазон целых ячеек, занятых коробкой по оси
func (b AABB) cellRange(axis Axis) (lo, hi int) {
	return int(math.Floor(b.Min[axis] + epsilon)), int(math.Ceil(b.Max[axis]-epsilon)) - 1
}
