package physics

import (
	"math"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/go-gl/mathgl/mgl64"
)

// RayHit блок, в который попал луч
type RayHit struct {
	Block    vec.Vec3 // ячейка попадания
	Normal   vec.Vec3 // нормаль грани входа (куда ставить новый блок)
	ID       block.ID
	Distance float64
}

// Place возвращает ячейку перед гранью попадания
func (h RayHit) Place() vec.Vec3 {
	return h.Block.Add(h.Normal)
}

// Raycast проходит по ячейкам вдоль луча (DDA) до первого блока,
// который ловит луч выбора. Растения ловят луч, хотя проходимы.
// maxDist урезается до MaxRayDistance.
func (q *Query) Raycast(origin, dir mgl64.Vec3, maxDist float64) (RayHit, bool) {
	if q.maxRay > 0 && maxDist > q.maxRay {
		maxDist = q.maxRay
	}
	if dir.Len() == 0 || !(maxDist > 0) {
		return RayHit{}, false
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(origin[i]) || math.IsInf(origin[i], 0) || math.IsNaN(dir[i]) || math.IsInf(dir[i], 0) {
			return RayHit{}, false
		}
	}
	dir = dir.Normalize()

	cell := [3]int{
		int(math.Floor(origin[0])),
		int(math.Floor(origin[1])),
		int(math.Floor(origin[2])),
	}
	var step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		switch {
		case dir[i] > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - origin[i]) / dir[i]
			tDelta[i] = 1 / dir[i]
		case dir[i] < 0:
			step[i] = -1
			tMax[i] = (origin[i] - float64(cell[i])) / -dir[i]
			tDelta[i] = 1 / -dir[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	var normal [3]int
	t := 0.0
	for t <= maxDist {
		id := q.source.GetBlock(vec.Vec3{X: cell[0], Y: cell[1], Z: cell[2]})
		if id != block.Air && q.blocks.IsRaycastTarget(id) {
			return RayHit{
				Block:    vec.Vec3{X: cell[0], Y: cell[1], Z: cell[2]},
				Normal:   vec.Vec3{X: normal[0], Y: normal[1], Z: normal[2]},
				ID:       id,
				Distance: t,
			}, true
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		normal = [3]int{}
		normal[axis] = -step[axis]
	}
	return RayHit{}, false
}
