package world

import "github.com/annel0/voxelworld/internal/vec"

// MeshReleaser освобождает геометрию, принадлежащую рендереру
type MeshReleaser interface {
	ReleaseMesh(handle MeshHandle)
}

// ChunkStore единственный владелец всех чанков: разреженная карта ключ -> чанк
type ChunkStore struct {
	mapper   Mapper
	chunks   map[ChunkKey]*Chunk
	columns  map[vec.Vec2]int // количество чанков в колонке
	releaser MeshReleaser
}

// NewChunkStore создаёт пустое хранилище. releaser может быть nil.
func NewChunkStore(mapper Mapper, releaser MeshReleaser) *ChunkStore {
	return &ChunkStore{
		mapper:   mapper,
		chunks:   make(map[ChunkKey]*Chunk),
		columns:  make(map[vec.Vec2]int),
		releaser: releaser,
	}
}

// SetReleaser подключает рендерер, освобождающий меши
func (s *ChunkStore) SetReleaser(r MeshReleaser) {
	s.releaser = r
}

// Mapper возвращает преобразователь координат хранилища
func (s *ChunkStore) Mapper() Mapper {
	return s.mapper
}

// GetOrCreate возвращает существующий чанк или создаёт пустой.
// Генератор здесь не вызывается: это обязанность Streamer.
// Координаты должны быть InRange; проверку делают World и Streamer.
func (s *ChunkStore) GetOrCreate(c ChunkCoord) *Chunk {
	key := c.Key()
	if chunk, ok := s.chunks[key]; ok {
		return chunk
	}
	chunk := newChunk(c, s.mapper.ChunkSize())
	s.chunks[key] = chunk
	s.columns[c.Column()]++
	return chunk
}

// Get возвращает чанк без создания. Чанк вне диапазона ключей всегда отсутствует.
func (s *ChunkStore) Get(c ChunkCoord) (*Chunk, bool) {
	if !c.InRange() {
		return nil, false
	}
	chunk, ok := s.chunks[c.Key()]
	return chunk, ok
}

// Has проверяет наличие чанка
func (s *ChunkStore) Has(c ChunkCoord) bool {
	_, ok := s.Get(c)
	return ok
}

// Remove освобождает меш чанка и удаляет его из хранилища.
// Повторный вызов для отсутствующего чанка ничего не делает.
func (s *ChunkStore) Remove(c ChunkCoord) bool {
	key := c.Key()
	chunk, ok := s.chunks[key]
	if !ok {
		return false
	}
	s.releaseMesh(chunk)
	delete(s.chunks, key)

	col := c.Column()
	if s.columns[col] <= 1 {
		delete(s.columns, col)
	} else {
		s.columns[col]--
	}
	return true
}

// ForEach обходит все чанки. Порядок не определён; изменять хранилище внутри обхода нельзя.
func (s *ChunkStore) ForEach(visit func(*Chunk)) {
	for _, chunk := range s.chunks {
		visit(chunk)
	}
}

// Len возвращает количество чанков
func (s *ChunkStore) Len() int {
	return len(s.chunks)
}

// ColumnLen возвращает количество чанков в колонке
func (s *ChunkStore) ColumnLen(col vec.Vec2) int {
	return s.columns[col]
}

// Clear освобождает все меши и очищает хранилище (перегенерация мира)
func (s *ChunkStore) Clear() int {
	n := len(s.chunks)
	for _, chunk := range s.chunks {
		s.releaseMesh(chunk)
	}
	s.chunks = make(map[ChunkKey]*Chunk)
	s.columns = make(map[vec.Vec2]int)
	return n
}

func (s *ChunkStore) releaseMesh(chunk *Chunk) {
	if chunk.mesh == nil {
		return
	}
	if s.releaser != nil {
		s.releaser.ReleaseMesh(chunk.mesh)
	}
	chunk.mesh = nil
}

// installMesh ставит новый меш, освобождая старый
func (s *ChunkStore) installMesh(chunk *Chunk, handle MeshHandle) {
	if chunk.mesh != nil && chunk.mesh != handle {
		s.releaseMesh(chunk)
	}
	chunk.mesh = handle
}
