package world

import (
	"sort"

	"github.com/annel0/voxelworld/internal/logging"
)

// NeighborLookup возвращает соседний чанк по смещению (±1 по одной оси).
// false означает отсутствующего соседа: граница считается открытой.
type NeighborLookup func(offset ChunkCoord) (*Chunk, bool)

// MeshBuilder строит геометрию чанка. Может вернуть nil для чанка без видимых граней.
type MeshBuilder interface {
	BuildMesh(chunk *Chunk, neighbors NeighborLookup) (MeshHandle, error)
}

// TickReport итог одного прохода перестройки
type TickReport struct {
	Rebuilt int // меши установлены
	Failed  int // сборщик вернул ошибку, чанк остался грязным
	Pending int // грязные чанки, оставшиеся после прохода
}

// MeshScheduler перестраивает меши грязных чанков в пределах бюджета,
// начиная с ближайших к наблюдателю
type MeshScheduler struct {
	store    *ChunkStore
	builder  MeshBuilder
	observer ChunkCoord
	onReport func(TickReport)
	log      *logging.Logger
}

// NewMeshScheduler создаёт планировщик поверх хранилища
func NewMeshScheduler(store *ChunkStore, builder MeshBuilder) *MeshScheduler {
	return &MeshScheduler{
		store:   store,
		builder: builder,
		log:     logging.GetMeshLogger(),
	}
}

// SetObserver задаёт чанк наблюдателя, от которого считается расстояние
func (s *MeshScheduler) SetObserver(c ChunkCoord) {
	s.observer = c
}

// Observer возвращает текущий чанк наблюдателя
func (s *MeshScheduler) Observer() ChunkCoord {
	return s.observer
}

// OnReport задаёт обработчик итогов прохода (метрики)
func (s *MeshScheduler) OnReport(fn func(TickReport)) {
	s.onReport = fn
}

// CollectDirty возвращает грязные чанки по возрастанию квадрата
// расстояния по X/Z до наблюдателя; при равенстве по ключу
func (s *MeshScheduler) CollectDirty() []*Chunk {
	var dirty []*Chunk
	s.store.ForEach(func(c *Chunk) {
		if c.dirty {
			dirty = append(dirty, c)
		}
	})

	sort.Slice(dirty, func(i, j int) bool {
		di := dirty[i].coord.PlanarDistanceSq(s.observer)
		dj := dirty[j].coord.PlanarDistanceSq(s.observer)
		if di != dj {
			return di < dj
		}
		return dirty[i].coord.Key() < dirty[j].coord.Key()
	})
	return dirty
}

// Tick перестраивает не более maxPerTick ближайших грязных чанков.
// maxPerTick <= 0 означает без ограничения.
func (s *MeshScheduler) Tick(maxPerTick int) TickReport {
	dirty := s.CollectDirty()
	batch := dirty
	if maxPerTick > 0 && len(batch) > maxPerTick {
		batch = batch[:maxPerTick]
	}

	var report TickReport
	for _, chunk := range batch {
		if s.rebuild(chunk) {
			report.Rebuilt++
		} else {
			report.Failed++
		}
	}
	for _, chunk := range dirty {
		if chunk.dirty {
			report.Pending++
		}
	}

	if s.onReport != nil && (report.Rebuilt > 0 || report.Failed > 0) {
		s.onReport(report)
	}
	return report
}

// rebuild строит и устанавливает меш. Флаг dirty снимается, только если
// за время сборки чанк не изменился.
func (s *MeshScheduler) rebuild(chunk *Chunk) bool {
	revision := chunk.revision
	lookup := func(offset ChunkCoord) (*Chunk, bool) {
		return s.store.Get(chunk.coord.Add(offset))
	}

	handle, err := s.builder.BuildMesh(chunk, lookup)
	if err != nil {
		s.log.Warn("Ошибка построения меша чанка %v: %v", chunk.coord, err)
		return false
	}

	s.store.installMesh(chunk, handle)
	if chunk.revision == revision {
		chunk.dirty = false
	}
	return true
}
