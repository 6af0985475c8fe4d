package mesh

import (
	"errors"
	"sync/atomic"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/go-gl/mathgl/mgl32"
)

var errNilChunk = errors.New("mesh: nil chunk")

// face одна из шести граней куба
type face struct {
	dir     [3]int
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3 // против часовой стрелки, если смотреть снаружи
}

var faces = [6]face{
	{dir: [3]int{1, 0, 0}, normal: mgl32.Vec3{1, 0, 0}, corners: [4]mgl32.Vec3{{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{dir: [3]int{-1, 0, 0}, normal: mgl32.Vec3{-1, 0, 0}, corners: [4]mgl32.Vec3{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{dir: [3]int{0, 1, 0}, normal: mgl32.Vec3{0, 1, 0}, corners: [4]mgl32.Vec3{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}}},
	{dir: [3]int{0, -1, 0}, normal: mgl32.Vec3{0, -1, 0}, corners: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{dir: [3]int{0, 0, 1}, normal: mgl32.Vec3{0, 0, 1}, corners: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{dir: [3]int{0, 0, -1}, normal: mgl32.Vec3{0, 0, -1}, corners: [4]mgl32.Vec3{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
}

// crossQuads две диагональные плоскости для растений
var crossQuads = [2][4]mgl32.Vec3{
	{{0, 0, 0}, {1, 0, 1}, {1, 1, 1}, {0, 1, 0}},
	{{0, 0, 1}, {1, 0, 0}, {1, 1, 0}, {0, 1, 1}},
}

// Stats счётчики сборщика
type Stats struct {
	Built    uint64 `json:"built"`
	Empty    uint64 `json:"empty"`
	Released uint64 `json:"released"`
	Live     int64  `json:"live"`
}

// Builder строит меши с отсечением скрытых граней. Грани на шве
// проверяются по соседнему чанку; отсутствующий сосед считается пустым.
type Builder struct {
	blocks *block.Registry

	built    atomic.Uint64
	empty    atomic.Uint64
	released atomic.Uint64
	live     atomic.Int64
}

// NewBuilder создаёт сборщик мешей
func NewBuilder(blocks *block.Registry) *Builder {
	return &Builder{blocks: blocks}
}

// BuildMesh реализует world.MeshBuilder. Для чанка без видимых граней возвращает nil.
func (b *Builder) BuildMesh(c *world.Chunk, neighbors world.NeighborLookup) (world.MeshHandle, error) {
	if c == nil {
		return nil, errNilChunk
	}

	n := c.Size()
	coord := c.Coord()
	origin := mgl32.Vec3{float32(coord.X * n), float32(coord.Y * n), float32(coord.Z * n)}

	// сосед по шву запрашивается один раз на направление
	var seam [6]*world.Chunk
	for i, f := range faces {
		if neighbors == nil {
			break
		}
		if nc, ok := neighbors(world.ChunkCoord{X: f.dir[0], Y: f.dir[1], Z: f.dir[2]}); ok {
			seam[i] = nc
		}
	}

	m := &Mesh{Coord: coord, visible: true}
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				id := c.Get(world.LocalCoord{X: x, Y: y, Z: z})
				if id == block.Air {
					continue
				}
				at := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)})

				if b.isPlant(id) {
					for _, q := range crossQuads {
						m.addQuad(offset(q, at), mgl32.Vec3{0, 1, 0})
					}
					continue
				}

				for i, f := range faces {
					nx, ny, nz := x+f.dir[0], y+f.dir[1], z+f.dir[2]
					var neighbor block.ID
					if nx >= 0 && nx < n && ny >= 0 && ny < n && nz >= 0 && nz < n {
						neighbor = c.Get(world.LocalCoord{X: nx, Y: ny, Z: nz})
					} else if seam[i] != nil {
						neighbor = seam[i].Get(world.LocalCoord{X: vec.Mod(nx, n), Y: vec.Mod(ny, n), Z: vec.Mod(nz, n)})
					}
					if b.faceVisible(id, neighbor) {
						m.addQuad(offset(f.corners, at), f.normal)
					}
				}
			}
		}
	}

	if m.Faces == 0 {
		b.empty.Add(1)
		return nil, nil
	}
	b.built.Add(1)
	b.live.Add(1)
	return m, nil
}

// ReleaseMesh реализует world.MeshReleaser
func (b *Builder) ReleaseMesh(h world.MeshHandle) {
	m, ok := h.(*Mesh)
	if !ok || m.released {
		return
	}
	m.released = true
	m.visible = false
	m.Positions, m.Normals, m.Indices = nil, nil, nil
	b.released.Add(1)
	b.live.Add(-1)
}

// Stats возвращает счётчики сборщика
func (b *Builder) Stats() Stats {
	return Stats{
		Built:    b.built.Load(),
		Empty:    b.empty.Load(),
		Released: b.released.Load(),
		Live:     b.live.Load(),
	}
}

// faceVisible: грань рисуется, если сосед пуст или прозрачен и другого типа
func (b *Builder) faceVisible(self, neighbor block.ID) bool {
	if neighbor == block.Air {
		return true
	}
	if b.isPlant(neighbor) {
		return true
	}
	return b.blocks.IsTransparent(neighbor) && neighbor != self
}

// isPlant прозрачный непроходимый не-жидкий блок рисуется крестом
func (b *Builder) isPlant(id block.ID) bool {
	p, ok := b.blocks.Get(id)
	return ok && p.Transparent && !p.Solid && !p.Liquid
}

func offset(q [4]mgl32.Vec3, at mgl32.Vec3) [4]mgl32.Vec3 {
	for i := range q {
		q[i] = q[i].Add(at)
	}
	return q
}
