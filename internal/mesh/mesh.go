package mesh

import (
	"github.com/annel0/voxelworld/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh геометрия чанка на CPU: треугольники с общими вершинами граней
type Mesh struct {
	Coord     world.ChunkCoord
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Faces     int

	visible  bool
	released bool
}

// SetVisible переключает видимость (выставляется отсечением)
func (m *Mesh) SetVisible(v bool) {
	m.visible = v
}

// Visible возвращает текущую видимость
func (m *Mesh) Visible() bool {
	return m.visible
}

// Released сообщает, освобождён ли меш
func (m *Mesh) Released() bool {
	return m.released
}

// VertexCount возвращает количество вершин
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) addQuad(corners [4]mgl32.Vec3, normal mgl32.Vec3) {
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, corners[0], corners[1], corners[2], corners[3])
	m.Normals = append(m.Normals, normal, normal, normal, normal)
	m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	m.Faces++
}
