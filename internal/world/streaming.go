package world

import (
	"errors"
	"sort"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// ErrSeedLocked возвращается при попытке сменить сид после начала генерации
var ErrSeedLocked = errors.New("world seed is locked: chunks already generated")

// BlockWriter то, через что генератор пишет блоки (реализуется World)
type BlockWriter interface {
	SetBlock(pos vec.Vec3, id block.ID, opts SetOptions)
}

// Generator заполняет чанк. Детерминирован для заданного сида.
// Пишет через SetBlock с SkipBroadcast; может писать в соседние чанки.
type Generator interface {
	GenerateChunk(coord ChunkCoord, out BlockWriter) error
}

// Seeder генератор, поддерживающий смену сида
type Seeder interface {
	SetSeed(seed int64)
}

// ColumnState состояние вертикальной колонки чанков
type ColumnState uint8

const (
	Unloaded ColumnState = iota
	Generating
	Resident
)

func (s ColumnState) String() string {
	switch s {
	case Generating:
		return "generating"
	case Resident:
		return "resident"
	default:
		return "unloaded"
	}
}

// StreamConfig задаёт окна загрузки и выгрузки (в чанках)
type StreamConfig struct {
	LoadRadius        int
	UnloadRadius      int // должен быть больше LoadRadius; 0 означает LoadRadius+2
	MaxColumnsPerTick int // 0: без ограничения
	WorldRadius       int // 0: мир не ограничен по горизонтали
	RetryDelayTicks   int // пауза перед повтором упавшей колонки; 0 означает 30 тиков
}

// StreamReport итог тика стриминга
type StreamReport struct {
	Observer  ChunkCoord
	Moved     bool
	Generated int // сгенерировано чанков
	Unloaded  int // выгружено чанков
	Failed    int // колонок с ошибкой генерации
	Queued    int // колонок, ожидающих генерации
	Resident  int // резидентных колонок
}

// Streamer загружает колонки вокруг наблюдателя и выгружает удалившиеся
type Streamer struct {
	world *World
	gen   Generator
	cfg   StreamConfig

	columns   map[vec.Vec2]ColumnState
	resident  int
	queue     []vec.Vec2
	retryAt   map[vec.Vec2]uint64
	protected map[ChunkKey]struct{}

	observer    ChunkCoord
	hasObserver bool
	ticks       uint64

	seed         int64
	generatedAny bool

	log *logging.Logger
}

// NewStreamer создаёт менеджер стриминга
func NewStreamer(w *World, gen Generator, cfg StreamConfig) *Streamer {
	if cfg.LoadRadius < 0 {
		cfg.LoadRadius = 0
	}
	if cfg.UnloadRadius <= cfg.LoadRadius {
		cfg.UnloadRadius = cfg.LoadRadius + 2
	}
	if cfg.RetryDelayTicks <= 0 {
		cfg.RetryDelayTicks = 30
	}
	return &Streamer{
		world:     w,
		gen:       gen,
		cfg:       cfg,
		columns:   make(map[vec.Vec2]ColumnState),
		retryAt:   make(map[vec.Vec2]uint64),
		protected: make(map[ChunkKey]struct{}),
		log:       logging.GetStreamingLogger(),
	}
}

// Config возвращает действующие параметры (с подставленными значениями по умолчанию)
func (s *Streamer) Config() StreamConfig {
	return s.cfg
}

// ColumnState возвращает состояние колонки (cx, cz)
func (s *Streamer) ColumnState(col vec.Vec2) ColumnState {
	return s.columns[col]
}

// Observer возвращает чанк наблюдателя на последнем тике
func (s *Streamer) Observer() (ChunkCoord, bool) {
	return s.observer, s.hasObserver
}

// Protect запрещает выгрузку чанка (например, чанк с активной сущностью)
func (s *Streamer) Protect(c ChunkCoord) {
	s.protected[c.Key()] = struct{}{}
}

// Unprotect снимает защиту от выгрузки
func (s *Streamer) Unprotect(c ChunkCoord) {
	delete(s.protected, c.Key())
}

// IsProtected сообщает, защищён ли чанк
func (s *Streamer) IsProtected(c ChunkCoord) bool {
	_, ok := s.protected[c.Key()]
	return ok
}

// Seed возвращает текущий сид
func (s *Streamer) Seed() int64 {
	return s.seed
}

// SetSeed задаёт сид до первой генерации. После неё сид меняется только через Regenerate.
func (s *Streamer) SetSeed(seed int64) error {
	if s.generatedAny {
		return ErrSeedLocked
	}
	s.applySeed(seed)
	return nil
}

// SeedLocked сообщает, была ли уже генерация
func (s *Streamer) SeedLocked() bool {
	return s.generatedAny
}

func (s *Streamer) applySeed(seed int64) {
	s.seed = seed
	if seeder, ok := s.gen.(Seeder); ok {
		seeder.SetSeed(seed)
	}
}

// Tick обновляет окна по позиции наблюдателя. Если чанк наблюдателя не
// изменился и нет незавершённой работы, выходит сразу.
func (s *Streamer) Tick(observer vec.Vec3Float) StreamReport {
	s.ticks++
	oc, _ := s.world.mapper.WorldToChunkFloat(observer)

	moved := !s.hasObserver || oc.X != s.observer.X || oc.Z != s.observer.Z
	s.observer = oc
	s.hasObserver = true

	report := StreamReport{Observer: oc, Moved: moved}
	if !moved && len(s.queue) == 0 && !s.retryDue() {
		report.Queued = len(s.retryAt)
		report.Resident = s.resident
		return report
	}

	if moved {
		report.Unloaded = s.unloadFar()
		s.enqueueWindow()
	} else if s.retryDue() {
		s.enqueueWindow()
	}

	s.processQueue(&report)
	report.Queued = len(s.queue) + len(s.retryAt)
	report.Resident = s.resident

	if report.Generated > 0 || report.Unloaded > 0 {
		s.log.Debug("Стриминг вокруг %v: +%d чанков, -%d чанков, в очереди %d",
			oc, report.Generated, report.Unloaded, report.Queued)
	}
	return report
}

// Regenerate очищает мир и состояние стриминга, меняет сид и заново загружает окно
func (s *Streamer) Regenerate(seed int64, observer vec.Vec3Float) StreamReport {
	removed := s.world.store.Clear()
	s.columns = make(map[vec.Vec2]ColumnState)
	s.resident = 0
	s.retryAt = make(map[vec.Vec2]uint64)
	s.queue = nil
	s.hasObserver = false
	s.generatedAny = false
	s.applySeed(seed)

	s.log.Info("🌍 Перегенерация мира с сидом %d (удалено чанков: %d)", seed, removed)
	return s.Tick(observer)
}

func (s *Streamer) inLoadWindow(col vec.Vec2) bool {
	if !(ChunkCoord{X: col.X, Z: col.Y}).InRange() {
		return false
	}
	if col.Chebyshev(s.observer.Column()) > s.cfg.LoadRadius {
		return false
	}
	if s.cfg.WorldRadius > 0 && col.Chebyshev(vec.Vec2{}) > s.cfg.WorldRadius {
		return false
	}
	return true
}

func (s *Streamer) beyondUnload(col vec.Vec2) bool {
	return col.Chebyshev(s.observer.Column()) > s.cfg.UnloadRadius
}

// unloadFar удаляет все незащищённые чанки за окном выгрузки
func (s *Streamer) unloadFar() int {
	var far []ChunkCoord
	s.world.store.ForEach(func(c *Chunk) {
		if s.beyondUnload(c.coord.Column()) && !s.IsProtected(c.coord) {
			far = append(far, c.coord)
		}
	})
	for _, c := range far {
		s.world.store.Remove(c)
	}

	for col := range s.columns {
		if s.beyondUnload(col) {
			s.setState(col, Unloaded)
		}
	}
	for col := range s.retryAt {
		if s.beyondUnload(col) {
			delete(s.retryAt, col)
		}
	}
	return len(far)
}

// enqueueWindow ставит в очередь все нерезидентные колонки окна загрузки
func (s *Streamer) enqueueWindow() {
	queued := make(map[vec.Vec2]bool, len(s.queue))
	kept := s.queue[:0]
	for _, col := range s.queue {
		if s.inLoadWindow(col) {
			kept = append(kept, col)
			queued[col] = true
		} else {
			s.setState(col, Unloaded)
		}
	}
	s.queue = kept

	// упавшие колонки вне окна больше не повторяются
	for col := range s.retryAt {
		if !s.inLoadWindow(col) {
			delete(s.retryAt, col)
			s.setState(col, Unloaded)
		}
	}

	r := s.cfg.LoadRadius
	center := s.observer.Column()
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			col := vec.Vec2{X: center.X + dx, Y: center.Y + dz}
			if queued[col] || s.columns[col] == Resident || !s.inLoadWindow(col) {
				continue
			}
			if at, failed := s.retryAt[col]; failed && at > s.ticks {
				continue
			}
			delete(s.retryAt, col)
			s.setState(col, Generating)
			s.queue = append(s.queue, col)
			queued[col] = true
		}
	}

	sort.Slice(s.queue, func(i, j int) bool {
		di := s.queue[i].DistanceSq(center)
		dj := s.queue[j].DistanceSq(center)
		if di != dj {
			return di < dj
		}
		if s.queue[i].X != s.queue[j].X {
			return s.queue[i].X < s.queue[j].X
		}
		return s.queue[i].Y < s.queue[j].Y
	})
}

func (s *Streamer) retryDue() bool {
	for _, at := range s.retryAt {
		if at <= s.ticks {
			return true
		}
	}
	return false
}

func (s *Streamer) processQueue(report *StreamReport) {
	budget := s.cfg.MaxColumnsPerTick
	processed := 0
	for len(s.queue) > 0 {
		if budget > 0 && processed >= budget {
			break
		}
		col := s.queue[0]
		s.queue = s.queue[1:]
		processed++

		generated, err := s.generateColumn(col)
		report.Generated += generated
		if err != nil {
			report.Failed++
			s.retryAt[col] = s.ticks + uint64(s.cfg.RetryDelayTicks)
			s.log.Error("Колонка %d,%d осталась в состоянии generating: %v", col.X, col.Y, err)
			continue
		}
		s.setState(col, Resident)
	}
}

// generateColumn генерирует все чанки колонки в вертикальном диапазоне
func (s *Streamer) generateColumn(col vec.Vec2) (int, error) {
	s.setState(col, Generating)
	generated := 0
	for cy := s.world.yMin; cy < s.world.yMax; cy++ {
		chunk := s.world.store.GetOrCreate(ChunkCoord{X: col.X, Y: cy, Z: col.Y})
		if chunk.generated {
			continue
		}
		if err := s.world.generate(chunk, s.gen); err != nil {
			return generated, err
		}
		s.generatedAny = true
		generated++
	}
	return generated, nil
}

// setState меняет состояние колонки; Unloaded удаляет запись
func (s *Streamer) setState(col vec.Vec2, st ColumnState) {
	old := s.columns[col]
	if old == Resident {
		s.resident--
	}
	if st == Resident {
		s.resident++
	}
	if st == Unloaded {
		delete(s.columns, col)
		return
	}
	s.columns[col] = st
}
