package terrain

import (
	"testing"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture записывает всё, что ставит генератор
type capture struct {
	blocks map[vec.Vec3]block.ID
	opts   []world.SetOptions
}

func newCapture() *capture {
	return &capture{blocks: make(map[vec.Vec3]block.ID)}
}

func (c *capture) SetBlock(pos vec.Vec3, id block.ID, opts world.SetOptions) {
	c.blocks[pos] = id
	c.opts = append(c.opts, opts)
}

func TestGeneratorDeterministic(t *testing.T) {
	a, b := newCapture(), newCapture()
	coord := world.ChunkCoord{X: 3, Y: 0, Z: -2}

	require.NoError(t, NewGenerator(16, 42, DefaultConfig()).GenerateChunk(coord, a))
	require.NoError(t, NewGenerator(16, 42, DefaultConfig()).GenerateChunk(coord, b))
	assert.Equal(t, a.blocks, b.blocks, "одинаковый сид даёт одинаковый мир")
	assert.NotEmpty(t, a.blocks)
}

func TestGeneratorWritesWithoutBroadcast(t *testing.T) {
	c := newCapture()
	require.NoError(t, NewGenerator(16, 1, DefaultConfig()).GenerateChunk(world.ChunkCoord{}, c))
	for _, o := range c.opts {
		require.True(t, o.SkipBroadcast, "генератор не должен рассылать правки")
	}
}

func TestGeneratorLayers(t *testing.T) {
	g := NewGenerator(16, 7, DefaultConfig())
	c := newCapture()
	require.NoError(t, g.GenerateChunk(world.ChunkCoord{}, c))
	require.NoError(t, g.GenerateChunk(world.ChunkCoord{Y: 1}, c))

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			assert.Equal(t, block.Bedrock, c.blocks[vec.Vec3{X: x, Z: z}], "бедрок на y=0")

			h := g.Height(x, z)
			top := c.blocks[vec.Vec3{X: x, Y: h, Z: z}]
			assert.Contains(t, []block.ID{block.Grass, block.Sand, block.Wood, block.Leaves}, top)
			if h < DefaultConfig().SeaLevel {
				assert.Equal(t, block.Water, c.blocks[vec.Vec3{X: x, Y: DefaultConfig().SeaLevel, Z: z}])
			}
		}
	}
}

func TestSetSeedChangesTerrain(t *testing.T) {
	g := NewGenerator(16, 1, DefaultConfig())
	before := make([]int, 0, 64)
	for x := 0; x < 64; x++ {
		before = append(before, g.Height(x*5, x*3))
	}

	g.SetSeed(2)
	assert.Equal(t, int64(2), g.Seed())
	after := make([]int, 0, 64)
	for x := 0; x < 64; x++ {
		after = append(after, g.Height(x*5, x*3))
	}
	assert.NotEqual(t, before, after)
}

func TestGeneratorWithWorld(t *testing.T) {
	w := world.New(world.Config{ChunkSize: 16, YMin: 0, YMax: 3})
	g := NewGenerator(16, 99, DefaultConfig())
	s := world.NewStreamer(w, g, world.StreamConfig{LoadRadius: 1})

	report := s.Tick(vec.Vec3Float{X: 8, Y: 30, Z: 8})
	assert.Equal(t, 9, report.Resident)
	assert.Equal(t, block.Bedrock, w.GetBlock(vec.Vec3{X: 5, Y: 0, Z: -7}))
	assert.True(t, w.Stats().Blocks > 0)
}
