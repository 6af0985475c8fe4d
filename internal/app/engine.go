package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/mesh"
	"github.com/annel0/voxelworld/internal/metrics"
	"github.com/annel0/voxelworld/internal/netsync"
	"github.com/annel0/voxelworld/internal/observability"
	"github.com/annel0/voxelworld/internal/physics"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/render"
	"github.com/annel0/voxelworld/internal/terrain"
	"github.com/annel0/voxelworld/internal/transport"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrStopped возвращается Do, если цикл движка завершился
var ErrStopped = errors.New("engine stopped")

// Options внешние зависимости движка
type Options struct {
	Bus       transport.Bus    // nil: без сетевой синхронизации
	Metrics   *metrics.Metrics // nil: без метрик
	Generator world.Generator  // nil: terrain.Generator из конфигурации
}

// TickSummary итог одного тика
type TickSummary struct {
	Tick     uint64             `json:"tick"`
	Applied  int                `json:"applied"`
	Commands int                `json:"commands"`
	Stream   world.StreamReport `json:"stream"`
	Mesh     world.TickReport   `json:"mesh"`
	Cull     render.CullReport  `json:"cull"`
	Duration time.Duration      `json:"duration"`
}

type command struct {
	fn   func(*Engine) error
	done chan error
}

// Engine владеет миром и выполняет единственный поток записи.
// Порядок тика: входящие правки -> команды -> стриминг -> меши -> отсечение -> отправка.
type Engine struct {
	cfg *config.Config

	world     *world.World
	streamer  *world.Streamer
	scheduler *world.MeshScheduler
	culler    *render.Culler
	builder   *mesh.Builder
	physics   *physics.Query
	link      *netsync.Link

	metrics *metrics.Metrics
	tracer  trace.Tracer

	commands chan command
	stopped  chan struct{}
	stopOnce sync.Once

	inputMu  sync.Mutex
	observer vec.Vec3Float
	frustum  *render.Frustum

	ticks     uint64
	lastMu    sync.RWMutex
	last      TickSummary
	inTrigger bool

	log *logging.Logger
}

// New собирает движок по конфигурации
func New(cfg *config.Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}

	builder := mesh.NewBuilder(registry)
	w := world.New(world.Config{
		ChunkSize: cfg.World.ChunkSize,
		YMin:      cfg.World.YMin,
		YMax:      cfg.World.YMax,
		Blocks:    registry,
		Releaser:  builder,
	})

	gen := opts.Generator
	if gen == nil {
		gen = terrain.NewGenerator(cfg.World.ChunkSize, cfg.World.Seed, terrainConfig(cfg.Terrain))
	}

	streamer := world.NewStreamer(w, gen, world.StreamConfig{
		LoadRadius:        cfg.Streaming.LoadRadius,
		UnloadRadius:      cfg.EffectiveUnloadRadius(),
		MaxColumnsPerTick: cfg.Streaming.MaxColumnsPerTick,
		WorldRadius:       cfg.Streaming.WorldRadius,
		RetryDelayTicks:   cfg.Streaming.RetryDelayTicks,
	})
	if err := streamer.SetSeed(cfg.World.Seed); err != nil {
		return nil, err
	}

	phys := physics.NewQuery(w, registry)
	phys.SetMaxRayDistance(cfg.Physics.MaxRayDistance)

	e := &Engine{
		cfg:       cfg,
		world:     w,
		streamer:  streamer,
		scheduler: world.NewMeshScheduler(w.Store(), builder),
		culler:    render.NewCuller(w.Store(), cfg.EffectiveCullDistance()),
		builder:   builder,
		physics:   phys,
		metrics:   opts.Metrics,
		tracer:    observability.Tracer(),
		commands:  make(chan command, 64),
		stopped:   make(chan struct{}),
		log:       logging.GetServerLogger(),
	}
	w.SetMeshTrigger(e.rebuildNow)

	if opts.Bus != nil {
		e.link = netsync.NewLink(opts.Bus, w, netsync.Config{
			NodeID:        cfg.Network.NodeID,
			Codec:         protocol.NewGzipCodec(cfg.Network.CompressionLevel),
			MaxBatch:      cfg.Network.MaxBatch,
			InboundBuffer: cfg.Network.InboundBuffer,
		})
		w.AttachPublisher(e.link)
		if !cfg.Network.SeedAuthority {
			e.link.SetSeedSink(streamer)
		}
		if e.metrics != nil {
			e.link.SetObserver(e.metrics)
		}
	}
	return e, nil
}

func terrainConfig(c config.TerrainConfig) terrain.Config {
	return terrain.Config{
		SeaLevel:     c.SeaLevel,
		BaseHeight:   c.BaseHeight,
		Amplitude:    c.Amplitude,
		Scale:        c.Scale,
		TreeChance:   c.TreeChance,
		FlowerChance: c.FlowerChance,
	}
}

func (e *Engine) World() *world.World { return e.world }
func (e *Engine) Streamer() *world.Streamer { return e.streamer }
func (e *Engine) Builder() *mesh.Builder { return e.builder }
func (e *Engine) Physics() *physics.Query { return e.physics }
func (e *Engine) Link() *netsync.Link { return e.link }

// SetObserver задаёт позицию наблюдателя для следующих тиков
func (e *Engine) SetObserver(pos vec.Vec3Float) {
	e.inputMu.Lock()
	e.observer = pos
	e.inputMu.Unlock()
}

// SetFrustum задаёт пирамиду видимости камеры; nil оставляет только отсечение по дальности
func (e *Engine) SetFrustum(f *render.Frustum) {
	e.inputMu.Lock()
	e.frustum = f
	e.inputMu.Unlock()
}

func (e *Engine) inputs() (vec.Vec3Float, *render.Frustum) {
	e.inputMu.Lock()
	defer e.inputMu.Unlock()
	return e.observer, e.frustum
}

// Last возвращает итог последнего тика
func (e *Engine) Last() TickSummary {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.last
}

// Start подключает сетевую синхронизацию. Без транспорта ничего не делает.
func (e *Engine) Start(ctx context.Context) error {
	if e.link == nil {
		return nil
	}
	if err := e.link.Start(ctx); err != nil {
		return err
	}
	if e.cfg.Network.SeedAuthority {
		return e.link.AnnounceSeed(ctx, e.streamer.Seed())
	}
	return nil
}

// Do выполняет fn в потоке движка и ждёт результата
func (e *Engine) Do(ctx context.Context, fn func(*Engine) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case e.commands <- cmd:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run крутит тики с частотой TickRate до отмены ctx
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopOnce.Do(func() { close(e.stopped) })

	interval := time.Second / time.Duration(e.cfg.Engine.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.log.Info("⏱️ Цикл движка запущен: %d тиков/с", e.cfg.Engine.TickRate)
	for {
		select {
		case <-ctx.Done():
			e.flush(context.Background())
			e.log.Info("Цикл движка остановлен после %d тиков", e.ticks)
			return nil
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick выполняет один тик. Вызывается только из потока движка.
func (e *Engine) Tick(ctx context.Context) TickSummary {
	start := time.Now()
	e.ticks++
	ctx, span := e.tracer.Start(ctx, "engine.tick", trace.WithAttributes(attribute.Int64("tick", int64(e.ticks))))
	defer span.End()

	observer, frustum := e.inputs()
	summary := TickSummary{Tick: e.ticks}

	stage := time.Now()
	if e.link != nil {
		summary.Applied = e.link.Drain()
	}
	summary.Commands = e.runCommands()
	e.observe("commands", stage)

	stage = time.Now()
	summary.Stream = e.streamer.Tick(observer)
	e.observe("stream", stage)

	stage = time.Now()
	e.scheduler.SetObserver(summary.Stream.Observer)
	summary.Mesh = e.scheduler.Tick(e.cfg.Mesh.MaxPerTick)
	e.observe("mesh", stage)

	stage = time.Now()
	e.culler.SetObserver(summary.Stream.Observer)
	summary.Cull = e.culler.Tick(frustum)
	e.observe("cull", stage)

	stage = time.Now()
	if every := e.cfg.Network.FlushEveryTicks; every <= 1 || e.ticks%uint64(every) == 0 {
		e.flush(ctx)
	}
	e.announceSeed(ctx)
	e.observe("flush", stage)

	summary.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("stream.generated", summary.Stream.Generated),
		attribute.Int("mesh.rebuilt", summary.Mesh.Rebuilt),
		attribute.Int("cull.visible", summary.Cull.Visible),
		attribute.Int("net.applied", summary.Applied),
	)

	if e.metrics != nil {
		e.metrics.ObserveStream(summary.Stream)
		e.metrics.ObserveMesh(summary.Mesh)
		e.metrics.ObserveStats(e.world.Stats())
		e.metrics.ObserveStage("tick", summary.Duration)
	}

	e.lastMu.Lock()
	e.last = summary
	e.lastMu.Unlock()
	return summary
}

func (e *Engine) runCommands() int {
	n := 0
	for {
		select {
		case cmd := <-e.commands:
			cmd.done <- e.safeCall(cmd.fn)
			n++
		default:
			return n
		}
	}
}

// safeCall не даёт панике в команде API уронить цикл движка
func (e *Engine) safeCall(fn func(*Engine) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Паника в команде движка: %v", r)
			err = fmt.Errorf("engine command panicked: %v", r)
		}
	}()
	return fn(e)
}

// rebuildNow немедленный проход перестройки мешей после правки блока
func (e *Engine) rebuildNow() {
	if e.inTrigger {
		return
	}
	e.inTrigger = true
	report := e.scheduler.Tick(e.cfg.Mesh.MaxPerTick)
	e.inTrigger = false
	if e.metrics != nil {
		e.metrics.ObserveMesh(report)
	}
}

func (e *Engine) flush(ctx context.Context) {
	if e.link == nil {
		return
	}
	if err := e.link.Flush(ctx); err != nil {
		e.log.Warn("Не удалось отправить пакет правок (%d в буфере): %v", e.link.Pending(), err)
	}
}

func (e *Engine) announceSeed(ctx context.Context) {
	every := e.cfg.Network.SeedAnnounceTicks
	if e.link == nil || !e.cfg.Network.SeedAuthority || every <= 0 || e.ticks%uint64(every) != 0 {
		return
	}
	if err := e.link.AnnounceSeed(ctx, e.streamer.Seed()); err != nil {
		e.log.Warn("Не удалось разослать сид: %v", err)
	}
}

func (e *Engine) observe(stage string, since time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveStage(stage, time.Since(since))
	}
}

// Regenerate пересоздаёт мир с новым сидом вокруг текущего наблюдателя.
// Вызывается из потока движка (через Do).
func (e *Engine) Regenerate(ctx context.Context, seed int64) world.StreamReport {
	observer, _ := e.inputs()
	report := e.streamer.Regenerate(seed, observer)
	if e.link != nil && e.cfg.Network.SeedAuthority {
		if err := e.link.AnnounceSeed(ctx, seed); err != nil {
			e.log.Warn("Не удалось разослать сид: %v", err)
		}
	}
	return report
}
