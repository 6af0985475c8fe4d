// Package transport доставляет кадры синхронизации между узлами мира.
// Кадр непрозрачный []byte; формат задаёт пакет protocol.
package transport

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrClosed возвращается при работе с закрытой шиной
var ErrClosed = errors.New("transport closed")

// FrameHandler потребляет входящий кадр. Вызывается из горутин транспорта,
// поэтому не должен трогать мир напрямую.
type FrameHandler func(frame []byte)

// Bus определяет абстракцию шины кадров.
// Подписка живёт, пока не отменён ctx или шина не закрыта.
type Bus interface {
	Publish(ctx context.Context, frame []byte) error
	Subscribe(ctx context.Context, h FrameHandler) error
	Stats() Stats
	Close() error
}

// Stats агрегированные счётчики шины
type Stats struct {
	Published uint64 `json:"published"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
	Errors    uint64 `json:"errors"`
}

type counters struct {
	published atomic.Uint64
	received  atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Published: c.published.Load(),
		Received:  c.received.Load(),
		Dropped:   c.dropped.Load(),
		Errors:    c.errors.Load(),
	}
}
