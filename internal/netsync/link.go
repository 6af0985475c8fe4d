// Package netsync связывает мир с транспортом: копит правки блоков за тик,
// отправляет их одним пакетом и применяет чужие пакеты в потоке движка.
package netsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/transport"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/google/uuid"
)

// Applier применяет входящую правку. Реализуется *world.World.
type Applier interface {
	ApplyChange(change protocol.BlockChange, opts world.SetOptions) error
}

// SeedSink принимает сид от удалённого узла. Реализуется *world.Streamer.
type SeedSink interface {
	SetSeed(seed int64) error
	Seed() int64
}

// FrameObserver учитывает кадры (например, metrics.Metrics)
type FrameObserver interface {
	Frame(direction, kind string)
}

// Config параметры канала синхронизации
type Config struct {
	NodeID        string // пусто означает случайный UUID
	Codec         protocol.BatchCodec
	MaxBatch      int // максимум правок в одном кадре, 0 означает без ограничения
	InboundBuffer int // размер очереди входящих кадров
}

// Stats счётчики канала
type Stats struct {
	FramesSent     uint64 `json:"frames_sent"`
	FramesReceived uint64 `json:"frames_received"`
	ChangesSent    uint64 `json:"changes_sent"`
	ChangesApplied uint64 `json:"changes_applied"`
	Echoes         uint64 `json:"echoes"`
	Malformed      uint64 `json:"malformed"`
	Rejected       uint64 `json:"rejected"`
	Dropped        uint64 `json:"dropped"`
	Stale          uint64 `json:"stale"`
}

// Link реализует world.ChangePublisher.
// PublishBlockChange, Flush и Drain вызываются только из потока движка;
// обработчик транспорта лишь кладёт кадры во входящую очередь.
type Link struct {
	bus    transport.Bus
	target Applier
	seeds  SeedSink
	obs    FrameObserver
	codec  protocol.BatchCodec

	nodeID   string
	maxBatch int
	seq      uint64
	pending  []protocol.BlockChange
	lastSeq  map[string]uint64

	inbound chan *protocol.Envelope

	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	changesSent    atomic.Uint64
	changesApplied atomic.Uint64
	echoes         atomic.Uint64
	malformed      atomic.Uint64
	rejected       atomic.Uint64
	dropped        atomic.Uint64
	stale          atomic.Uint64

	log *logging.Logger
}

// NewLink создаёт канал. Подписка на транспорт начинается в Start.
func NewLink(bus transport.Bus, target Applier, cfg Config) *Link {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.Codec == nil {
		cfg.Codec = protocol.NewGzipCodec(6)
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = 1024
	}
	return &Link{
		bus:      bus,
		target:   target,
		codec:    cfg.Codec,
		nodeID:   cfg.NodeID,
		maxBatch: cfg.MaxBatch,
		lastSeq:  make(map[string]uint64),
		inbound:  make(chan *protocol.Envelope, cfg.InboundBuffer),
		log:      logging.GetSyncLogger(),
	}
}

// NodeID возвращает идентификатор узла, которым помечаются исходящие кадры
func (l *Link) NodeID() string {
	return l.nodeID
}

// SetSeedSink включает приём сида от других узлов
func (l *Link) SetSeedSink(s SeedSink) {
	l.seeds = s
}

// SetObserver подключает учёт кадров
func (l *Link) SetObserver(obs FrameObserver) {
	l.obs = obs
}

// Start подписывается на транспорт. Подписка живёт до отмены ctx.
func (l *Link) Start(ctx context.Context) error {
	if err := l.bus.Subscribe(ctx, l.receive); err != nil {
		return fmt.Errorf("netsync subscribe: %w", err)
	}
	l.log.Info("🔗 Синхронизация блоков запущена (узел %s)", l.nodeID)
	return nil
}

// receive вызывается из горутины транспорта
func (l *Link) receive(frame []byte) {
	env, err := protocol.UnmarshalEnvelope(frame)
	if err != nil {
		l.malformed.Add(1)
		l.log.Warn("Отброшен повреждённый кадр: %v", err)
		return
	}
	l.framesReceived.Add(1)
	select {
	case l.inbound <- env:
	default:
		l.dropped.Add(1)
		l.log.Warn("Очередь входящих кадров переполнена, кадр %s от %s отброшен", env.Kind, env.Origin)
	}
}

// PublishBlockChange буферизует локальную правку до Flush
func (l *Link) PublishBlockChange(change protocol.BlockChange) {
	l.pending = append(l.pending, change)
}

// Pending возвращает число правок, ожидающих отправки
func (l *Link) Pending() int {
	return len(l.pending)
}

// Flush отправляет накопленные правки. Пустой буфер ничего не отправляет.
// При ошибке транспорта правки остаются в буфере до следующего Flush.
func (l *Link) Flush(ctx context.Context) error {
	for len(l.pending) > 0 {
		n := len(l.pending)
		if l.maxBatch > 0 && n > l.maxBatch {
			n = l.maxBatch
		}
		payload, err := l.codec.Encode(l.pending[:n])
		if err != nil {
			return fmt.Errorf("encode batch: %w", err)
		}
		if err := l.send(ctx, protocol.KindBlockBatch, payload); err != nil {
			return err
		}
		l.changesSent.Add(uint64(n))
		l.pending = l.pending[n:]
	}
	l.pending = nil
	return nil
}

// AnnounceSeed сообщает сид мира другим узлам
func (l *Link) AnnounceSeed(ctx context.Context, seed int64) error {
	payload, err := protocol.EncodeSeed(seed)
	if err != nil {
		return err
	}
	return l.send(ctx, protocol.KindSeed, payload)
}

func (l *Link) send(ctx context.Context, kind protocol.Kind, payload []byte) error {
	l.seq++
	env := &protocol.Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Origin:    l.nodeID,
		Seq:       l.seq,
		Version:   protocol.CurrentVersion,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	frame, err := protocol.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	if err := l.bus.Publish(ctx, frame); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	l.framesSent.Add(1)
	if l.obs != nil {
		l.obs.Frame("out", string(kind))
	}
	return nil
}

// Drain применяет все входящие кадры, накопившиеся к этому моменту.
// Возвращает число применённых правок блоков.
func (l *Link) Drain() int {
	applied := 0
	for {
		select {
		case env := <-l.inbound:
			applied += l.apply(env)
		default:
			return applied
		}
	}
}

func (l *Link) apply(env *protocol.Envelope) int {
	if env.Origin == l.nodeID {
		l.echoes.Add(1)
		return 0
	}
	if env.Version > protocol.CurrentVersion {
		l.rejected.Add(1)
		l.log.Warn("Кадр версии %d от %s не поддерживается", env.Version, env.Origin)
		return 0
	}
	if last, ok := l.lastSeq[env.Origin]; ok && env.Seq <= last {
		l.stale.Add(1)
		return 0
	}
	l.lastSeq[env.Origin] = env.Seq
	if l.obs != nil {
		l.obs.Frame("in", string(env.Kind))
	}

	switch env.Kind {
	case protocol.KindBlockBatch:
		return l.applyBatch(env)
	case protocol.KindSeed:
		l.applySeed(env)
	default:
		l.rejected.Add(1)
		l.log.Debug("Неизвестный тип кадра %q от %s", env.Kind, env.Origin)
	}
	return 0
}

func (l *Link) applyBatch(env *protocol.Envelope) int {
	changes, err := l.codec.Decode(env.Payload)
	if err != nil {
		l.malformed.Add(1)
		l.log.Warn("Пакет от %s не разобран: %v", env.Origin, err)
		return 0
	}
	// Меши перестраивает проход планировщика в этом же тике, в пределах его бюджета
	opts := world.SetOptions{SkipBroadcast: true, SkipMeshSchedule: true}
	applied := 0
	for _, change := range changes {
		if err := l.target.ApplyChange(change, opts); err != nil {
			l.rejected.Add(1)
			l.log.Warn("Правка %v от %s отклонена: %v", change, env.Origin, err)
			continue
		}
		applied++
	}
	l.changesApplied.Add(uint64(applied))
	return applied
}

func (l *Link) applySeed(env *protocol.Envelope) {
	if l.seeds == nil {
		return
	}
	seed, err := protocol.DecodeSeed(env.Payload)
	if err != nil {
		l.malformed.Add(1)
		return
	}
	if seed == l.seeds.Seed() {
		return
	}
	if err := l.seeds.SetSeed(seed); err != nil {
		if errors.Is(err, world.ErrSeedLocked) {
			l.log.Info("Сид %d от %s проигнорирован: мир уже сгенерирован с сидом %d", seed, env.Origin, l.seeds.Seed())
			return
		}
		l.log.Warn("Сид %d от %s не применён: %v", seed, env.Origin, err)
		return
	}
	l.log.Info("🌱 Принят сид %d от узла %s", seed, env.Origin)
}

// Stats возвращает снимок счётчиков
func (l *Link) Stats() Stats {
	return Stats{
		FramesSent:     l.framesSent.Load(),
		FramesReceived: l.framesReceived.Load(),
		ChangesSent:    l.changesSent.Load(),
		ChangesApplied: l.changesApplied.Load(),
		Echoes:         l.echoes.Load(),
		Malformed:      l.malformed.Load(),
		Rejected:       l.rejected.Load(),
		Dropped:        l.dropped.Load(),
		Stale:          l.stale.Load(),
	}
}
