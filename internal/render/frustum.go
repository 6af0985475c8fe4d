package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Plane плоскость n·p + d = 0, нормаль смотрит внутрь объёма
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

// Distance знаковое расстояние от точки до плоскости
func (p Plane) Distance(pt mgl64.Vec3) float64 {
	return p.Normal.Dot(pt) + p.D
}

// Frustum пирамида видимости камеры из шести плоскостей
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix извлекает плоскости из матрицы projection*view
// (соглашения OpenGL, клиповое пространство z ∈ [-w, w])
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	raw := [6]mgl64.Vec4{
		r3.Add(r0), // левая
		r3.Sub(r0), // правая
		r3.Add(r1), // нижняя
		r3.Sub(r1), // верхняя
		r3.Add(r2), // ближняя
		r3.Sub(r2), // дальняя
	}

	var f Frustum
	for i, v := range raw {
		n := mgl64.Vec3{v[0], v[1], v[2]}
		l := n.Len()
		if l == 0 {
			l = 1
		}
		f.Planes[i] = Plane{Normal: n.Mul(1 / l), D: v[3] / l}
	}
	return f
}

// NewPerspectiveFrustum строит пирамиду по параметрам камеры (fovY в радианах)
func NewPerspectiveFrustum(eye, target, up mgl64.Vec3, fovY, aspect, near, far float64) Frustum {
	proj := mgl64.Perspective(fovY, aspect, near, far)
	view := mgl64.LookAtV(eye, target, up)
	return FrustumFromMatrix(proj.Mul4(view))
}

// IntersectsAABB проверяет пересечение с коробкой [min, max] (консервативно)
func (f Frustum) IntersectsAABB(min, max mgl64.Vec3) bool {
	for _, p := range f.Planes {
		// вершина коробки, наиболее далёкая в сторону нормали
		v := mgl64.Vec3{
			pick(p.Normal[0], min[0], max[0]),
			pick(p.Normal[1], min[1], max[1]),
			pick(p.Normal[2], min[2], max[2]),
		}
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint проверяет, лежит ли точка внутри пирамиды
func (f Frustum) ContainsPoint(pt mgl64.Vec3) bool {
	for _, p := range f.Planes {
		if p.Distance(pt) < 0 {
			return false
		}
	}
	return true
}

func pick(n, lo, hi float64) float64 {
	if math.Signbit(n) {
		return lo
	}
	return hi
}
