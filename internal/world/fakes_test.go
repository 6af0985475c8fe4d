package world

import (
	"errors"

	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

type fakeMesh struct {
	coord   ChunkCoord
	visible bool
}

func (m *fakeMesh) SetVisible(v bool) { m.visible = v }
func (m *fakeMesh) Visible() bool { return m.visible }

// fakeBuilder строит пустые меши и падает для выбранных чанков
type fakeBuilder struct {
	built    []ChunkCoord
	fail     map[ChunkCoord]bool
	released []MeshHandle
	during   func(c *Chunk)
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{fail: make(map[ChunkCoord]bool)}
}

func (b *fakeBuilder) BuildMesh(c *Chunk, _ NeighborLookup) (MeshHandle, error) {
	if b.fail[c.Coord()] {
		return nil, errors.New("builder exploded")
	}
	if b.during != nil {
		b.during(c)
	}
	b.built = append(b.built, c.Coord())
	return &fakeMesh{coord: c.Coord(), visible: true}, nil
}

func (b *fakeBuilder) ReleaseMesh(h MeshHandle) {
	b.released = append(b.released, h)
}

// recordingPublisher запоминает исходящие изменения
type recordingPublisher struct {
	changes []protocol.BlockChange
}

func (p *recordingPublisher) PublishBlockChange(c protocol.BlockChange) {
	p.changes = append(p.changes, c)
}

// flatGenerator кладёт слой камня на y=0 каждого чанка с cy == 0
type flatGenerator struct {
	mapper Mapper
	calls  map[ChunkCoord]int
	fail   map[vec.Vec2]bool
	seed   int64
}

func newFlatGenerator(m Mapper) *flatGenerator {
	return &flatGenerator{mapper: m, calls: make(map[ChunkCoord]int), fail: make(map[vec.Vec2]bool)}
}

func (g *flatGenerator) SetSeed(seed int64) { g.seed = seed }

func (g *flatGenerator) GenerateChunk(c ChunkCoord, out BlockWriter) error {
	g.calls[c]++
	if g.fail[c.Column()] {
		return errors.New("noise backend unavailable")
	}
	if c.Y != 0 {
		return nil
	}
	n := g.mapper.ChunkSize()
	for x := 0; x < n; x++ {
		for z := 0; z < n; z++ {
			pos := g.mapper.ToWorld(c, LocalCoord{X: x, Z: z})
			out.SetBlock(pos, block.Stone, SetOptions{SkipBroadcast: true, SkipMeshSchedule: true})
		}
	}
	return nil
}

func (g *flatGenerator) totalCalls() int {
	n := 0
	for _, v := range g.calls {
		n += v
	}
	return n
}

func newTestWorld() *World {
	return New(Config{ChunkSize: 16, YMin: 0, YMax: 2})
}
