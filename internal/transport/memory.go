package transport

import (
	"context"
	"sync"
)

// MemoryHub in-process шина. Все подписчики хаба получают все кадры,
// включая опубликованные ими самими, в порядке публикации.
type MemoryHub struct {
	counters

	subMu       sync.RWMutex
	subscribers map[int]FrameHandler
	nextID      int

	closeMu sync.RWMutex
	closed  bool
	buffer  chan []byte
	done    chan struct{}
}

// NewMemoryHub создаёт хаб с буфером на capacity кадров
func NewMemoryHub(capacity int) *MemoryHub {
	if capacity <= 0 {
		capacity = 256
	}
	h := &MemoryHub{
		subscribers: make(map[int]FrameHandler),
		buffer:      make(chan []byte, capacity),
		done:        make(chan struct{}),
	}
	go h.dispatchLoop()
	return h
}

// Publish ставит кадр в очередь. При заполненном буфере ждёт места или отмены ctx.
func (h *MemoryHub) Publish(ctx context.Context, frame []byte) error {
	h.closeMu.RLock()
	defer h.closeMu.RUnlock()
	if h.closed {
		return ErrClosed
	}

	// Копия: отправитель может переиспользовать буфер
	data := append([]byte(nil), frame...)
	select {
	case h.buffer <- data:
		h.published.Add(1)
		return nil
	case <-ctx.Done():
		h.dropped.Add(1)
		return ctx.Err()
	}
}

func (h *MemoryHub) Subscribe(ctx context.Context, fh FrameHandler) error {
	h.closeMu.RLock()
	closed := h.closed
	h.closeMu.RUnlock()
	if closed {
		return ErrClosed
	}

	h.subMu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fh
	h.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.subMu.Lock()
		delete(h.subscribers, id)
		h.subMu.Unlock()
	}()
	return nil
}

func (h *MemoryHub) Stats() Stats {
	return h.snapshot()
}

// Close останавливает доставку. Кадры, уже стоящие в очереди, доставляются.
func (h *MemoryHub) Close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.buffer)
	return nil
}

// dispatchLoop рассылает кадры подписчикам
func (h *MemoryHub) dispatchLoop() {
	defer close(h.done)
	for frame := range h.buffer {
		h.subMu.RLock()
		subs := make([]FrameHandler, 0, len(h.subscribers))
		for _, fh := range h.subscribers {
			subs = append(subs, fh)
		}
		h.subMu.RUnlock()

		for _, fh := range subs {
			fh(frame)
			h.received.Add(1)
		}
	}
}
