package physics

import (
	"math"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/go-gl/mathgl/mgl64"
)

// BlockSource чтение блоков мира (реализуется world.World)
type BlockSource interface {
	GetBlock(pos vec.Vec3) block.ID
}

// Query отвечает на вопросы о столкновениях с блоками мира.
// Проходимость берётся из таблицы возможностей блоков, а не из имён.
type Query struct {
	source BlockSource
	blocks *block.Registry
	maxRay float64
}

// NewQuery создаёт запрос коллизий поверх источника блоков
func NewQuery(source BlockSource, blocks *block.Registry) *Query {
	return &Query{source: source, blocks: blocks}
}

// SetMaxRayDistance ограничивает дальность Raycast; 0 снимает ограничение
func (q *Query) SetMaxRayDistance(d float64) {
	q.maxRay = d
}

// MaxRayDistance возвращает потолок дальности луча (0 означает без ограничения)
func (q *Query) MaxRayDistance() float64 {
	return q.maxRay
}

// IsSolid возвращает true, если в ячейке непроходимый блок.
// Несгенерированные чанки читаются как воздух.
func (q *Query) IsSolid(x, y, z int) bool {
	id := q.source.GetBlock(vec.Vec3{X: x, Y: y, Z: z})
	return id != block.Air && q.blocks.IsSolid(id)
}

// IsLiquid возвращает true, если ячейка занята жидкостью
func (q *Query) IsLiquid(x, y, z int) bool {
	id := q.source.GetBlock(vec.Vec3{X: x, Y: y, Z: z})
	if id == block.Air {
		return false
	}
	p, ok := q.blocks.Get(id)
	return ok && p.Liquid
}

// Overlaps проверяет, пересекает ли коробка хоть один непроходимый блок
func (q *Query) Overlaps(box AABB) bool {
	x0, x1 := box.cellRange(AxisX)
	y0, y1 := box.cellRange(AxisY)
	z0, z1 := box.cellRange(AxisZ)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				if q.IsSolid(x, y, z) {
					return true
				}
			}
		}
	}
	return false
}

// SweepResult итог перемещения вдоль одной оси
type SweepResult struct {
	Delta      float64 // разрешённое смещение: полное или ноль
	Blocked    bool
	Grounded   bool // движение вниз упёрлось в опору
	CeilingHit bool // движение вверх упёрлось в потолок
}

// SweepAxis проверяет смещение коробки вдоль одной оси. Проверяются все
// ячейки решётки, в которые входит ведущая грань коробки на пути смещения,
// включая углы. Возвращается либо всё смещение, либо ноль.
func (q *Query) SweepAxis(box AABB, axis Axis, delta float64) SweepResult {
	if delta == 0 {
		return SweepResult{}
	}

	// диапазон новых ячеек вдоль оси движения
	var lo, hi int
	if delta > 0 {
		start := box.Max[axis]
		lo = int(math.Ceil(start - epsilon))
		hi = int(math.Ceil(start+delta-epsilon)) - 1
	} else {
		start := box.Min[axis]
		lo = int(math.Floor(start + delta + epsilon))
		hi = int(math.Floor(start+epsilon)) - 1
	}
	if lo > hi {
		return SweepResult{Delta: delta}
	}

	// поперечные оси
	var ranges [3][2]int
	for a := AxisX; a <= AxisZ; a++ {
		if a == axis {
			ranges[a] = [2]int{lo, hi}
			continue
		}
		l, h := box.cellRange(a)
		ranges[a] = [2]int{l, h}
	}

	for x := ranges[AxisX][0]; x <= ranges[AxisX][1]; x++ {
		for y := ranges[AxisY][0]; y <= ranges[AxisY][1]; y++ {
			for z := ranges[AxisZ][0]; z <= ranges[AxisZ][1]; z++ {
				if q.IsSolid(x, y, z) {
					return SweepResult{
						Blocked:    true,
						Grounded:   axis == AxisY && delta < 0,
						CeilingHit: axis == AxisY && delta > 0,
					}
				}
			}
		}
	}
	return SweepResult{Delta: delta}
}

// MoveResult итог MoveAndSlide
type MoveResult struct {
	Applied    mgl64.Vec3
	Grounded   bool
	CeilingHit bool
	BlockedX   bool
	BlockedZ   bool
}

// MoveAndSlide перемещает коробку по осям в фиксированном порядке Y, X, Z.
// Оси разрешаются независимо, поэтому при диагональном касании движение
// скользит вдоль стены. Итог зависит от порядка осей; это упрощение.
func (q *Query) MoveAndSlide(box AABB, delta mgl64.Vec3) (AABB, MoveResult) {
	var res MoveResult

	y := q.SweepAxis(box, AxisY, delta[1])
	box = box.Offset(AxisY, y.Delta)
	res.Applied[1] = y.Delta
	res.Grounded = y.Grounded
	res.CeilingHit = y.CeilingHit

	x := q.SweepAxis(box, AxisX, delta[0])
	box = box.Offset(AxisX, x.Delta)
	res.Applied[0] = x.Delta
	res.BlockedX = x.Blocked

	z := q.SweepAxis(box, AxisZ, delta[2])
	box = box.Offset(AxisZ, z.Delta)
	res.Applied[2] = z.Delta
	res.BlockedZ = z.Blocked

	return box, res
}
