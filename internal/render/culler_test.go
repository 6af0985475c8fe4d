package render

import (
	"math"
	"testing"

	"github.com/annel0/voxelworld/internal/mesh"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookAlongX() Frustum {
	return NewPerspectiveFrustum(
		mgl64.Vec3{8, 8, 8}, mgl64.Vec3{100, 8, 8}, mgl64.Vec3{0, 1, 0},
		math.Pi/3, 16.0/9.0, 0.1, 500,
	)
}

func TestFrustumContainsPoint(t *testing.T) {
	f := lookAlongX()
	assert.True(t, f.ContainsPoint(mgl64.Vec3{50, 8, 8}))
	assert.False(t, f.ContainsPoint(mgl64.Vec3{-50, 8, 8}), "за камерой")
	assert.False(t, f.ContainsPoint(mgl64.Vec3{1000, 8, 8}), "за дальней плоскостью")
	assert.False(t, f.ContainsPoint(mgl64.Vec3{20, 8, 400}), "вне угла обзора")
}

func TestFrustumIntersectsAABB(t *testing.T) {
	f := lookAlongX()
	assert.True(t, f.IntersectsAABB(mgl64.Vec3{32, 0, 0}, mgl64.Vec3{48, 16, 16}))
	assert.True(t, f.IntersectsAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{16, 16, 16}), "камера внутри коробки")
	assert.False(t, f.IntersectsAABB(mgl64.Vec3{-48, 0, 0}, mgl64.Vec3{-32, 16, 16}))
}

func newWorldWithMeshes(t *testing.T, coords ...world.ChunkCoord) *world.World {
	t.Helper()
	w := world.New(world.Config{ChunkSize: 16, YMin: 0, YMax: 1})
	b := mesh.NewBuilder(w.Blocks())
	w.Store().SetReleaser(b)
	for _, c := range coords {
		origin := w.Mapper().Origin(c)
		w.SetBlock(origin.Add(vec.Vec3{X: 8, Y: 8, Z: 8}), block.Stone, world.SetOptions{})
	}
	world.NewMeshScheduler(w.Store(), b).Tick(0)
	return w
}

func TestCullerTogglesVisibility(t *testing.T) {
	ahead := world.ChunkCoord{X: 3}
	behind := world.ChunkCoord{X: -3}
	w := newWorldWithMeshes(t, ahead, behind)
	culler := NewCuller(w.Store(), 0)
	f := lookAlongX()

	report := culler.Tick(&f)
	assert.Equal(t, CullReport{Tested: 2, Visible: 1, Hidden: 1}, report)

	a, _ := w.Store().Get(ahead)
	b, _ := w.Store().Get(behind)
	assert.True(t, a.Mesh().Visible())
	assert.False(t, b.Mesh().Visible())
	assert.False(t, a.IsDirty(), "отсечение не трогает dirty")
}

func TestCullerMaxDistance(t *testing.T) {
	near := world.ChunkCoord{X: 2}
	far := world.ChunkCoord{X: 9}
	w := newWorldWithMeshes(t, near, far)
	culler := NewCuller(w.Store(), 6)

	report := culler.Tick(nil)
	assert.Equal(t, 1, report.Hidden)
	c, _ := w.Store().Get(far)
	require.NotNil(t, c.Mesh())
	assert.False(t, c.Mesh().Visible(), "дальний чанк скрыт без проверки пирамиды")

	culler.SetObserver(world.ChunkCoord{X: 8})
	culler.Tick(nil)
	assert.True(t, c.Mesh().Visible())
}
