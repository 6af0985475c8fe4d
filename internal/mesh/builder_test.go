package mesh

import (
	"testing"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorld() *world.World {
	return world.New(world.Config{ChunkSize: 16, YMin: 0, YMax: 1})
}

func build(t *testing.T, w *world.World, b *Builder, c world.ChunkCoord) *Mesh {
	t.Helper()
	chunk, ok := w.Store().Get(c)
	require.True(t, ok, "чанк %v должен существовать", c)
	h, err := b.BuildMesh(chunk, func(off world.ChunkCoord) (*world.Chunk, bool) {
		return w.Store().Get(c.Add(off))
	})
	require.NoError(t, err)
	if h == nil {
		return nil
	}
	return h.(*Mesh)
}

func TestSingleBlockHasSixFaces(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{X: 3, Y: 4, Z: 5}, block.Stone, world.SetOptions{})

	m := build(t, w, b, world.ChunkCoord{})
	require.NotNil(t, m)
	assert.Equal(t, 6, m.Faces)
	assert.Equal(t, 24, m.VertexCount())
	assert.Len(t, m.Indices, 36)
	assert.True(t, m.Visible(), "новый меш видим до первого отсечения")
}

func TestAdjacentOpaqueBlocksHideSharedFaces(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{X: 3}, block.Stone, world.SetOptions{})
	w.SetBlock(vec.Vec3{X: 4}, block.Dirt, world.SetOptions{})

	assert.Equal(t, 10, build(t, w, b, world.ChunkCoord{}).Faces)
}

func TestTransparentNeighbors(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{X: 3}, block.Stone, world.SetOptions{})
	w.SetBlock(vec.Vec3{X: 4}, block.Glass, world.SetOptions{})
	assert.Equal(t, 11, build(t, w, b, world.ChunkCoord{}).Faces, "грань камня за стеклом видна")

	w.SetBlock(vec.Vec3{X: 3}, block.Glass, world.SetOptions{})
	assert.Equal(t, 10, build(t, w, b, world.ChunkCoord{}).Faces, "стекло рядом со стеклом сливается")
}

func TestSeamUsesNeighborChunk(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{X: 15}, block.Stone, world.SetOptions{})

	assert.Equal(t, 6, build(t, w, b, world.ChunkCoord{}).Faces, "отсутствующий сосед: открытая граница")

	w.SetBlock(vec.Vec3{X: 16}, block.Stone, world.SetOptions{})
	assert.Equal(t, 5, build(t, w, b, world.ChunkCoord{}).Faces, "грань на шве закрыта соседом")
	assert.Equal(t, 5, build(t, w, b, world.ChunkCoord{X: 1}).Faces)

	w.SetBlock(vec.Vec3{X: -1, Z: 15}, block.Stone, world.SetOptions{})
	w.SetBlock(vec.Vec3{X: 0, Z: 15}, block.Stone, world.SetOptions{})
	assert.Equal(t, 5, build(t, w, b, world.ChunkCoord{X: -1}).Faces, "отрицательный сосед по X")
}

func TestPlantsRenderAsCross(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{Y: 1}, block.FlowerRed, world.SetOptions{})
	w.SetBlock(vec.Vec3{}, block.Grass, world.SetOptions{})

	m := build(t, w, b, world.ChunkCoord{})
	assert.Equal(t, 2+6, m.Faces, "цветок: два креста, верх травы под ним виден")
}

func TestEmptyChunkAndRelease(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.SetBlock(vec.Vec3{}, block.Stone, world.SetOptions{})
	w.SetBlock(vec.Vec3{}, block.Air, world.SetOptions{})

	assert.Nil(t, build(t, w, b, world.ChunkCoord{}), "пустой чанк не даёт меша")
	assert.Equal(t, uint64(1), b.Stats().Empty)

	w.SetBlock(vec.Vec3{}, block.Stone, world.SetOptions{})
	m := build(t, w, b, world.ChunkCoord{})
	assert.Equal(t, int64(1), b.Stats().Live)

	b.ReleaseMesh(m)
	b.ReleaseMesh(m)
	assert.True(t, m.Released())
	assert.False(t, m.Visible())
	assert.Equal(t, int64(0), b.Stats().Live, "повторное освобождение не считается")

	_, err := b.BuildMesh(nil, nil)
	assert.Error(t, err)
}

func TestBuilderWithScheduler(t *testing.T) {
	w := newWorld()
	b := NewBuilder(w.Blocks())
	w.Store().SetReleaser(b)
	sched := world.NewMeshScheduler(w.Store(), b)

	w.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.Stone, world.SetOptions{})
	report := sched.Tick(4)
	assert.Equal(t, 1, report.Rebuilt)

	w.SetBlock(vec.Vec3{X: 2, Y: 1, Z: 1}, block.Stone, world.SetOptions{})
	sched.Tick(4)
	stats := b.Stats()
	assert.Equal(t, uint64(2), stats.Built)
	assert.Equal(t, uint64(1), stats.Released, "старый меш освобождён при замене")
	assert.Equal(t, int64(1), stats.Live)
}
