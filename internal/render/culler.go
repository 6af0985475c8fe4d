package render

import (
	"github.com/annel0/voxelworld/internal/world"
	"github.com/go-gl/mathgl/mgl64"
)

// CullReport итог прохода отсечения
type CullReport struct {
	Tested  int
	Visible int
	Hidden  int
}

// Culler переключает видимость мешей чанков. Ячейки и флаг dirty не трогает.
type Culler struct {
	store *world.ChunkStore

	// MaxDistance расстояние Чебышёва в чанках, за которым меш скрывается
	// без проверки пирамиды; 0 отключает проверку
	MaxDistance int

	observer world.ChunkCoord
}

// NewCuller создаёт отсечение поверх хранилища
func NewCuller(store *world.ChunkStore, maxDistance int) *Culler {
	return &Culler{store: store, MaxDistance: maxDistance}
}

// SetObserver задаёт чанк наблюдателя для отсечения по расстоянию
func (c *Culler) SetObserver(o world.ChunkCoord) {
	c.observer = o
}

// Tick проверяет каждый чанк с мешем. nil-пирамида означает только
// отсечение по расстоянию (сервер без камеры).
func (c *Culler) Tick(frustum *Frustum) CullReport {
	var report CullReport
	oc := c.observer.Column()
	c.store.ForEach(func(ch *world.Chunk) {
		mesh := ch.Mesh()
		if mesh == nil {
			return
		}
		report.Tested++

		visible := true
		if c.MaxDistance > 0 && ch.Coord().Column().Chebyshev(oc) > c.MaxDistance {
			visible = false
		} else if frustum != nil {
			min, max := ch.Bounds()
			visible = frustum.IntersectsAABB(
				mgl64.Vec3{float64(min.X), float64(min.Y), float64(min.Z)},
				mgl64.Vec3{float64(max.X), float64(max.Y), float64(max.Z)},
			)
		}

		if mesh.Visible() != visible {
			mesh.SetVisible(visible)
		}
		if visible {
			report.Visible++
		} else {
			report.Hidden++
		}
	})
	return report
}
