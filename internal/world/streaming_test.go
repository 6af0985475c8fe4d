package world

import (
	"testing"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// observerAt возвращает позицию в центре колонки (cx, cz)
func observerAt(cx, cz int) vec.Vec3Float {
	return vec.Vec3Float{X: float64(cx*16) + 8, Y: 20, Z: float64(cz*16) + 8}
}

func TestStreamingWindow(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 4})
	assert.Equal(t, 6, s.Config().UnloadRadius, "по умолчанию окно выгрузки на 2 больше")

	report := s.Tick(observerAt(0, 0))
	assert.True(t, report.Moved)
	assert.Equal(t, 81, report.Resident)
	assert.Equal(t, 81*2, report.Generated)

	for cx := -4; cx <= 4; cx++ {
		for cz := -4; cz <= 4; cz++ {
			require.Equal(t, Resident, s.ColumnState(vec.Vec2{X: cx, Y: cz}), "колонка %d,%d", cx, cz)
			for cy := 0; cy < 2; cy++ {
				c, ok := w.Store().Get(ChunkCoord{X: cx, Y: cy, Z: cz})
				require.True(t, ok)
				assert.True(t, c.IsGenerated())
				assert.True(t, c.IsDirty(), "новый чанк ждёт первого меша")
			}
		}
	}
	assert.Equal(t, Unloaded, s.ColumnState(vec.Vec2{X: 5}))

	s.Tick(observerAt(10, 0))
	w.Store().ForEach(func(c *Chunk) {
		col := c.Coord().Column()
		assert.LessOrEqual(t, col.Chebyshev(vec.Vec2{X: 10}), 6, "чанк %v должен быть выгружен", c.Coord())
	})
	assert.False(t, w.Store().Has(ChunkCoord{X: -4}))
	assert.Equal(t, Unloaded, s.ColumnState(vec.Vec2{X: -4}))
	assert.Equal(t, Resident, s.ColumnState(vec.Vec2{X: 14, Y: 4}))
}

func TestStreamingEarlyExit(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 1})

	s.Tick(observerAt(0, 0))
	calls := gen.totalCalls()

	report := s.Tick(vec.Vec3Float{X: 1, Y: 30, Z: 15})
	assert.False(t, report.Moved, "движение внутри чанка и по вертикали не двигает окно")
	assert.Equal(t, calls, gen.totalCalls())
	assert.Equal(t, 9, report.Resident)
}

func TestStreamingHysteresis(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 2})

	s.Tick(observerAt(0, 0))
	s.Tick(observerAt(1, 0))
	s.Tick(observerAt(0, 0))

	// колонка x=-2 не выгружалась, пока наблюдатель отходил на один чанк
	assert.Equal(t, 1, gen.calls[ChunkCoord{X: -2}], "колонка не должна генерироваться повторно")
}

func TestStreamingBudget(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 2, MaxColumnsPerTick: 4})

	report := s.Tick(observerAt(0, 0))
	assert.Equal(t, 4, report.Resident)
	assert.Equal(t, 21, report.Queued)
	assert.Equal(t, Resident, s.ColumnState(vec.Vec2{}), "первой генерируется колонка наблюдателя")
	assert.Equal(t, Generating, s.ColumnState(vec.Vec2{X: 2, Y: 2}))

	for i := 0; i < 10; i++ {
		report = s.Tick(observerAt(0, 0))
	}
	assert.Equal(t, 25, report.Resident)
	assert.Equal(t, 0, report.Queued)
}

func TestStreamingGeneratorFailureRetries(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	gen.fail[vec.Vec2{X: 1}] = true
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 1, RetryDelayTicks: 2})

	report := s.Tick(observerAt(0, 0))
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 8, report.Resident)
	assert.Equal(t, Generating, s.ColumnState(vec.Vec2{X: 1}), "колонка с ошибкой остаётся в generating")

	s.Tick(observerAt(0, 0))
	assert.Equal(t, 1, gen.calls[ChunkCoord{X: 1}], "повтор только после паузы")

	delete(gen.fail, vec.Vec2{X: 1})
	report = s.Tick(observerAt(0, 0))
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 9, report.Resident)
	assert.Equal(t, Resident, s.ColumnState(vec.Vec2{X: 1}))
}

func TestStreamingProtectedChunk(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 1})

	s.Tick(observerAt(0, 0))
	s.Protect(ChunkCoord{X: -1})
	s.Tick(observerAt(20, 0))

	assert.True(t, w.Store().Has(ChunkCoord{X: -1}), "защищённый чанк не выгружается")
	assert.False(t, w.Store().Has(ChunkCoord{X: -1, Y: 1}))
	assert.Equal(t, Unloaded, s.ColumnState(vec.Vec2{X: -1}))

	s.Unprotect(ChunkCoord{X: -1})
	s.Tick(observerAt(21, 0))
	assert.False(t, w.Store().Has(ChunkCoord{X: -1}))
}

func TestStreamingNewChunkDirtiesNeighbors(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	builder := newFakeBuilder()
	sched := NewMeshScheduler(w.Store(), builder)
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 0, UnloadRadius: 3})

	s.Tick(observerAt(0, 0))
	sched.Tick(0)
	origin, _ := w.Store().Get(ChunkCoord{})
	require.False(t, origin.IsDirty())

	s.Tick(observerAt(1, 0))
	assert.True(t, origin.IsDirty(), "сосед по шву появился, грани надо пересчитать")
}

func TestStreamingWorldRadius(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 3, WorldRadius: 1})

	report := s.Tick(observerAt(0, 0))
	assert.Equal(t, 9, report.Resident, "за границей мира колонки не создаются")
	assert.False(t, w.Store().Has(ChunkCoord{X: 2}))
}

func TestSeedLockAndRegenerate(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	builder := newFakeBuilder()
	w.Store().SetReleaser(builder)
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 1})

	require.NoError(t, s.SetSeed(7))
	assert.Equal(t, int64(7), gen.seed)

	s.Tick(observerAt(0, 0))
	assert.ErrorIs(t, s.SetSeed(8), ErrSeedLocked)
	assert.True(t, s.SeedLocked())

	c, _ := w.Store().Get(ChunkCoord{})
	w.Store().installMesh(c, &fakeMesh{})
	w.SetBlock(vec.Vec3{X: 1, Y: 5, Z: 1}, block.Wood, SetOptions{})

	report := s.Regenerate(99, observerAt(0, 0))
	assert.Equal(t, int64(99), gen.seed)
	assert.Equal(t, int64(99), s.Seed())
	assert.Equal(t, 9, report.Resident)
	assert.Len(t, builder.released, 1, "меши старого мира освобождены")
	assert.Equal(t, block.Air, w.GetBlock(vec.Vec3{X: 1, Y: 5, Z: 1}), "правки старого мира сброшены")
	assert.Equal(t, 2, gen.calls[ChunkCoord{}])
}

func TestStreamingPreservesEditsBeforeGeneration(t *testing.T) {
	w := newTestWorld()
	gen := newFlatGenerator(w.Mapper())
	s := NewStreamer(w, gen, StreamConfig{LoadRadius: 0})

	// правка пришла по сети раньше, чем чанк был сгенерирован
	w.SetBlock(vec.Vec3{X: 20, Y: 0, Z: 3}, block.Air, SetOptions{SkipBroadcast: true})
	w.SetBlock(vec.Vec3{X: 20, Y: 1, Z: 3}, block.Glass, SetOptions{SkipBroadcast: true})

	s.Tick(observerAt(1, 0))
	assert.Equal(t, block.Air, w.GetBlock(vec.Vec3{X: 20, Y: 0, Z: 3}))
	assert.Equal(t, block.Glass, w.GetBlock(vec.Vec3{X: 20, Y: 1, Z: 3}))
	assert.Equal(t, block.Stone, w.GetBlock(vec.Vec3{X: 21, Y: 0, Z: 3}))
}
