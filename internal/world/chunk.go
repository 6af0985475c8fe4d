package world

import (
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// MeshHandle непрозрачная ссылка на геометрию, которой владеет рендерер.
// Ядро только переключает видимость и освобождает её через MeshReleaser.
type MeshHandle interface {
	SetVisible(visible bool)
	Visible() bool
}

// Chunk представляет куб chunkSize³ ячеек мира
type Chunk struct {
	coord ChunkCoord
	size  int

	cells []block.ID
	count int // количество непустых ячеек

	dirty    bool
	revision uint64 // растёт при каждом изменении, влияющем на меш

	mesh MeshHandle

	generated bool
	edits     map[int]block.ID // правки, сделанные до генерации: индекс -> ID
}

func newChunk(coord ChunkCoord, size int) *Chunk {
	return &Chunk{
		coord: coord,
		size:  size,
		cells: make([]block.ID, size*size*size),
	}
}

// Coord возвращает координаты чанка
func (c *Chunk) Coord() ChunkCoord {
	return c.coord
}

// Size возвращает длину ребра чанка
func (c *Chunk) Size() int {
	return c.size
}

func (c *Chunk) index(l LocalCoord) int {
	return l.X + l.Y*c.size + l.Z*c.size*c.size
}

func (c *Chunk) inside(l LocalCoord) bool {
	return l.X >= 0 && l.X < c.size && l.Y >= 0 && l.Y < c.size && l.Z >= 0 && l.Z < c.size
}

// Get возвращает ID блока по локальным координатам.
// Координаты вне чанка дают block.Air.
func (c *Chunk) Get(l LocalCoord) block.ID {
	if !c.inside(l) {
		return block.Air
	}
	return c.cells[c.index(l)]
}

// set записывает ячейку и возвращает true, если значение изменилось
func (c *Chunk) set(l LocalCoord, id block.ID) bool {
	idx := c.index(l)
	old := c.cells[idx]
	if old == id {
		return false
	}
	c.cells[idx] = id
	switch {
	case old == block.Air:
		c.count++
	case id == block.Air:
		c.count--
	}
	return true
}

// reset очищает все ячейки (откат неудачной генерации)
func (c *Chunk) reset() {
	clear(c.cells)
	c.count = 0
}

// BlockCount возвращает количество непустых ячеек
func (c *Chunk) BlockCount() int {
	return c.count
}

// IsEmpty возвращает true, если в чанке нет блоков
func (c *Chunk) IsEmpty() bool {
	return c.count == 0
}

// IsDirty возвращает true, если меш не соответствует ячейкам
func (c *Chunk) IsDirty() bool {
	return c.dirty
}

// MarkDirty помечает чанк для перестройки меша
func (c *Chunk) MarkDirty() {
	c.dirty = true
	c.revision++
}

// Revision возвращает счётчик изменений чанка
func (c *Chunk) Revision() uint64 {
	return c.revision
}

// Mesh возвращает текущий меш (nil, если меш ещё не строился или пуст)
func (c *Chunk) Mesh() MeshHandle {
	return c.mesh
}

// IsGenerated возвращает true, если генератор уже заполнил чанк
func (c *Chunk) IsGenerated() bool {
	return c.generated
}

// Bounds возвращает мировые границы чанка [min, max) в блоках
func (c *Chunk) Bounds() (min, max vec.Vec3) {
	min = vec.Vec3{X: c.coord.X * c.size, Y: c.coord.Y * c.size, Z: c.coord.Z * c.size}
	max = min.Add(vec.Vec3{X: c.size, Y: c.size, Z: c.size})
	return min, max
}

// recordEdit запоминает правку, сделанную до генерации, чтобы
// она пережила последующее заполнение генератором
func (c *Chunk) recordEdit(l LocalCoord, id block.ID) {
	if c.edits == nil {
		c.edits = make(map[int]block.ID)
	}
	c.edits[c.index(l)] = id
}

// hasEdit сообщает, была ли явная правка ячейки до генерации
func (c *Chunk) hasEdit(l LocalCoord) bool {
	_, ok := c.edits[c.index(l)]
	return ok
}

// applyEdits накладывает сохранённые правки поверх текущих ячеек
func (c *Chunk) applyEdits() {
	for idx, id := range c.edits {
		old := c.cells[idx]
		if old == id {
			continue
		}
		c.cells[idx] = id
		switch {
		case old == block.Air:
			c.count++
		case id == block.Air:
			c.count--
		}
	}
}
