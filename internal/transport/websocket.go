package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 1 << 20
)

// subscribers общий реестр обработчиков для хаба и клиента
type subscribers struct {
	mu     sync.RWMutex
	byID   map[int]FrameHandler
	nextID int
}

func (s *subscribers) add(ctx context.Context, h FrameHandler, done <-chan struct{}) {
	s.mu.Lock()
	if s.byID == nil {
		s.byID = make(map[int]FrameHandler)
	}
	id := s.nextID
	s.nextID++
	s.byID[id] = h
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		s.mu.Lock()
		delete(s.byID, id)
		s.mu.Unlock()
	}()
}

func (s *subscribers) dispatch(frame []byte) int {
	s.mu.RLock()
	handlers := make([]FrameHandler, 0, len(s.byID))
	for _, h := range s.byID {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(frame)
	}
	return len(handlers)
}

// WebSocketHub узел-ретранслятор: принимает WebSocket-клиентов,
// рассылает им опубликованные кадры и пересылает кадр каждого клиента
// остальным клиентам и локальным подписчикам.
type WebSocketHub struct {
	counters
	subs subscribers

	upgrader websocket.Upgrader
	queue    int

	mu      sync.RWMutex
	clients map[*wsPeer]struct{}
	closed  bool
	done    chan struct{}
}

type wsPeer struct {
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
}

func (p *wsPeer) close() {
	p.once.Do(func() {
		close(p.out)
	})
}

// NewWebSocketHub создаёт хаб. queue: размер исходящей очереди клиента.
func NewWebSocketHub(queue int) *WebSocketHub {
	if queue <= 0 {
		queue = 64
	}
	return &WebSocketHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		queue:   queue,
		clients: make(map[*wsPeer]struct{}),
		done:    make(chan struct{}),
	}
}

// ServeHTTP принимает WebSocket-подключение клиента
func (h *WebSocketHub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logging.GetNetworkLogger().Warn("WebSocket upgrade failed: %v", err)
		return
	}

	peer := &wsPeer{conn: conn, out: make(chan []byte, h.queue)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[peer] = struct{}{}
	h.mu.Unlock()
	logging.GetNetworkLogger().Debug("WebSocket клиент подключён: %s", r.RemoteAddr)

	go h.writeLoop(peer)
	h.readLoop(peer)

	h.mu.Lock()
	delete(h.clients, peer)
	h.mu.Unlock()
	peer.close()
	logging.GetNetworkLogger().Debug("WebSocket клиент отключён: %s", r.RemoteAddr)
}

func (h *WebSocketHub) readLoop(peer *wsPeer) {
	conn := peer.conn
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.received.Add(1)
		h.broadcast(frame, peer)
		h.subs.dispatch(frame)
	}
}

func (h *WebSocketHub) writeLoop(peer *wsPeer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = peer.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-peer.out:
			_ = peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = peer.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := peer.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				h.errors.Add(1)
				return
			}
		case <-ticker.C:
			_ = peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := peer.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast ставит кадр в очереди всех клиентов, кроме except.
// Медленный клиент теряет кадр, а не тормозит остальных.
func (h *WebSocketHub) broadcast(frame []byte, except *wsPeer) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for peer := range h.clients {
		if peer == except {
			continue
		}
		select {
		case peer.out <- frame:
		default:
			h.dropped.Add(1)
		}
	}
}

// Publish рассылает кадр всем подключённым клиентам
func (h *WebSocketHub) Publish(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	h.broadcast(append([]byte(nil), frame...), nil)
	h.published.Add(1)
	return nil
}

// Subscribe получает кадры, присланные клиентами
func (h *WebSocketHub) Subscribe(ctx context.Context, fh FrameHandler) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	h.subs.add(ctx, fh, h.done)
	return nil
}

// Clients возвращает число подключённых клиентов
func (h *WebSocketHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) Stats() Stats {
	return h.snapshot()
}

// Close отключает всех клиентов
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	for peer := range h.clients {
		peer.close()
	}
	h.clients = make(map[*wsPeer]struct{})
	return nil
}

// WebSocketClient Bus поверх одного подключения к WebSocketHub
type WebSocketClient struct {
	counters
	subs subscribers

	conn    *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// DialWebSocket подключается к хабу по адресу ws://host/ws
func DialWebSocket(ctx context.Context, url string) (*WebSocketClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	c := &WebSocketClient{conn: conn, done: make(chan struct{})}
	go c.readLoop()
	logging.GetNetworkLogger().Info("🔌 WebSocket клиент подключён к %s", url)
	return c, nil
}

func (c *WebSocketClient) readLoop() {
	defer c.shutdown()
	c.conn.SetReadLimit(maxFrame)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.received.Add(1)
		c.subs.dispatch(frame)
	}
}

func (c *WebSocketClient) Publish(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("websocket write: %w", err)
	}
	c.published.Add(1)
	return nil
}

func (c *WebSocketClient) Subscribe(ctx context.Context, fh FrameHandler) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.subs.add(ctx, fh, c.done)
	return nil
}

func (c *WebSocketClient) Stats() Stats {
	return c.snapshot()
}

func (c *WebSocketClient) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Close отправляет close-кадр и закрывает соединение
func (c *WebSocketClient) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown()
	return c.conn.Close()
}
