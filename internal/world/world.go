package world

import (
	"fmt"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Значения по умолчанию для мира
const (
	DefaultChunkSize = 16
	DefaultYMin      = 0
	DefaultYMax      = 4
)

// SetOptions управляет побочными эффектами SetBlock
type SetOptions struct {
	// SkipMeshSchedule откладывает немедленный проход перестройки мешей (пакетные правки)
	SkipMeshSchedule bool
	// SkipBroadcast не отправляет изменение в сеть (правка пришла из сети или от генератора)
	SkipBroadcast bool
}

// ChangePublisher получает локальные изменения блоков для отправки в сеть
type ChangePublisher interface {
	PublishBlockChange(change protocol.BlockChange)
}

// Occupancy результат чтения ячейки с учётом того, известен ли чанк
type Occupancy uint8

const (
	// Unknown чанк не существует или ячейка ещё не заполнена генератором
	Unknown Occupancy = iota
	// Empty ячейка известна и пуста
	Empty
	// Occupied в ячейке есть блок
	Occupied
)

func (o Occupancy) String() string {
	switch o {
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// BlockState трёхзначный результат Inspect
type BlockState struct {
	Occupancy Occupancy
	ID        block.ID
}

// Config задаёт геометрию мира
type Config struct {
	ChunkSize int
	YMin      int // нижняя граница по Y в чанках (включительно)
	YMax      int // верхняя граница по Y в чанках (исключительно)
	Blocks    *block.Registry
	Releaser  MeshReleaser
}

// World агрегат: хранилище чанков, преобразователь координат и вертикальный диапазон.
// Все методы вызываются из одного потока движка; блокировок нет.
type World struct {
	mapper Mapper
	store  *ChunkStore
	blocks *block.Registry
	yMin   int
	yMax   int

	publisher ChangePublisher
	trigger   func()

	generating *Chunk // чанк, который сейчас заполняет генератор
	edits      uint64

	log *logging.Logger
}

// New создаёт пустой мир
func New(cfg Config) *World {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.YMin == 0 && cfg.YMax == 0 {
		cfg.YMin, cfg.YMax = DefaultYMin, DefaultYMax
	}
	if cfg.Blocks == nil {
		cfg.Blocks = block.Default()
	}
	mapper := NewMapper(cfg.ChunkSize)
	return &World{
		mapper: mapper,
		store:  NewChunkStore(mapper, cfg.Releaser),
		blocks: cfg.Blocks,
		yMin:   cfg.YMin,
		yMax:   cfg.YMax,
		log:    logging.GetWorldLogger(),
	}
}

func (w *World) Mapper() Mapper { return w.mapper }
func (w *World) Store() *ChunkStore { return w.store }
func (w *World) Blocks() *block.Registry { return w.blocks }
func (w *World) VerticalRange() (int, int) { return w.yMin, w.yMax }

// AttachPublisher подключает сетевой транспорт. nil отключает рассылку.
func (w *World) AttachPublisher(p ChangePublisher) {
	w.publisher = p
}

// SetMeshTrigger задаёт немедленный проход перестройки мешей после правки
func (w *World) SetMeshTrigger(trigger func()) {
	w.trigger = trigger
}

// InVerticalRange сообщает, попадает ли мировая Y в диапазон, который обходит стриминг.
// Правки вне диапазона принимаются, но такой чанк никогда не станет резидентным.
func (w *World) InVerticalRange(y int) bool {
	return y >= w.yMin*w.mapper.ChunkSize() && y < w.yMax*w.mapper.ChunkSize()
}

// SetBlock записывает блок (block.Air удаляет блок) и помечает затронутые меши.
// Отсутствующий чанк создаётся: правка до генерации сохраняется и
// переживает последующее заполнение генератором.
// Позиция вне диапазона чанков игнорируется.
func (w *World) SetBlock(pos vec.Vec3, id block.ID, opts SetOptions) {
	cc, lc := w.mapper.WorldToChunk(pos)
	if !cc.InRange() {
		w.log.Debug("Правка %v вне диапазона чанков проигнорирована", pos)
		return
	}
	chunk := w.store.GetOrCreate(cc)

	changed := chunk.set(lc, id)
	if !chunk.generated && chunk != w.generating {
		chunk.recordEdit(lc, id)
	}
	if changed {
		for _, dirty := range w.dirtySet(chunk, lc) {
			dirty.MarkDirty()
		}
		if w.generating == nil {
			w.edits++
		}
	}

	if changed && !opts.SkipMeshSchedule && w.trigger != nil {
		w.trigger()
	}
	if !opts.SkipBroadcast && w.publisher != nil {
		w.publisher.PublishBlockChange(w.changeFor(pos, id))
	}
}

// SetBlockByName делает то же по имени типа; nil означает удаление
func (w *World) SetBlockByName(pos vec.Vec3, name *string, opts SetOptions) error {
	if !w.mapper.InRange(pos) {
		return fmt.Errorf("set block at %v: %w", pos, ErrOutOfRange)
	}
	id := block.Air
	if name != nil {
		var ok bool
		id, ok = w.blocks.Lookup(*name)
		if !ok {
			return fmt.Errorf("set block %q at %v: %w", *name, pos, block.ErrUnknownBlock)
		}
	}
	w.SetBlock(pos, id, opts)
	return nil
}

// ApplyChange применяет сетевое сообщение об изменении блока
func (w *World) ApplyChange(change protocol.BlockChange, opts SetOptions) error {
	return w.SetBlockByName(vec.Vec3{X: change.X, Y: change.Y, Z: change.Z}, change.BlockType, opts)
}

// GetBlock возвращает блок в позиции. Отсутствующий чанк читается как воздух.
func (w *World) GetBlock(pos vec.Vec3) block.ID {
	cc, lc := w.mapper.WorldToChunk(pos)
	chunk, ok := w.store.Get(cc)
	if !ok {
		return block.Air
	}
	return chunk.Get(lc)
}

// GetBlockName возвращает имя типа блока или nil для пустой ячейки
func (w *World) GetBlockName(pos vec.Vec3) *string {
	id := w.GetBlock(pos)
	if id == block.Air {
		return nil
	}
	name := w.blocks.Name(id)
	return &name
}

// Inspect отличает "ещё не сгенерировано" от "сгенерировано и пусто"
func (w *World) Inspect(pos vec.Vec3) BlockState {
	cc, lc := w.mapper.WorldToChunk(pos)
	chunk, ok := w.store.Get(cc)
	if !ok {
		return BlockState{Occupancy: Unknown}
	}
	if !chunk.generated && !chunk.hasEdit(lc) {
		return BlockState{Occupancy: Unknown}
	}
	id := chunk.Get(lc)
	if id == block.Air {
		return BlockState{Occupancy: Empty}
	}
	return BlockState{Occupancy: Occupied, ID: id}
}

// DirtySet возвращает чанки, чей меш зависит от ячейки pos:
// сам чанк и существующие соседи по шву.
func (w *World) DirtySet(pos vec.Vec3) []ChunkCoord {
	cc, lc := w.mapper.WorldToChunk(pos)
	chunk, ok := w.store.Get(cc)
	if !ok {
		return nil
	}
	set := w.dirtySet(chunk, lc)
	coords := make([]ChunkCoord, len(set))
	for i, c := range set {
		coords[i] = c.coord
	}
	return coords
}

func (w *World) dirtySet(chunk *Chunk, lc LocalCoord) []*Chunk {
	set := []*Chunk{chunk}
	for _, off := range w.mapper.SeamOffsets(lc) {
		if n, ok := w.store.Get(chunk.coord.Add(off)); ok {
			set = append(set, n)
		}
	}
	return set
}

func (w *World) changeFor(pos vec.Vec3, id block.ID) protocol.BlockChange {
	if id == block.Air {
		return protocol.Remove(pos.X, pos.Y, pos.Z)
	}
	return protocol.Place(pos.X, pos.Y, pos.Z, w.blocks.Name(id))
}

// generate заполняет чанк генератором и накладывает сохранённые правки.
// При ошибке чанк откатывается к одним правкам и остаётся несгенерированным.
func (w *World) generate(chunk *Chunk, gen Generator) error {
	w.generating = chunk
	err := gen.GenerateChunk(chunk.coord, w)
	w.generating = nil

	if err != nil {
		chunk.reset()
		chunk.applyEdits()
		return fmt.Errorf("generate chunk %v: %w", chunk.coord, err)
	}

	chunk.applyEdits()
	chunk.edits = nil
	chunk.generated = true
	chunk.MarkDirty()

	// Новый чанк закрывает грани соседей по шву
	for _, off := range faceOffsets {
		if n, ok := w.store.Get(chunk.coord.Add(off)); ok && n.generated {
			n.MarkDirty()
		}
	}
	return nil
}

// Stats сводка состояния мира
type Stats struct {
	Chunks    int    `json:"chunks"`
	Generated int    `json:"generated"`
	Dirty     int    `json:"dirty"`
	Meshes    int    `json:"meshes"`
	Visible   int    `json:"visible"`
	Blocks    int    `json:"blocks"`
	Edits     uint64 `json:"edits"`
}

// Stats собирает статистику обходом хранилища
func (w *World) Stats() Stats {
	s := Stats{Chunks: w.store.Len(), Edits: w.edits}
	w.store.ForEach(func(c *Chunk) {
		if c.generated {
			s.Generated++
		}
		if c.dirty {
			s.Dirty++
		}
		if c.mesh != nil {
			s.Meshes++
			if c.mesh.Visible() {
				s.Visible++
			}
		}
		s.Blocks += c.count
	})
	return s
}
