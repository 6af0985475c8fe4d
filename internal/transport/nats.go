package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSConfig параметры подключения к NATS
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// NATSBus реализует Bus поверх NATS Pub/Sub (core, без JetStream).
// Кадры синхронизации блоков эфемерны: опоздавшему узлу их заменяет генерация по сиду.
type NATSBus struct {
	counters

	conn    *nats.Conn
	subject string

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSBus подключается к серверу NATS
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.Subject == "" {
		cfg.Subject = "voxel.blocks"
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}

	log := logging.GetNetworkLogger()
	opts := []nats.Option{
		nats.Name("voxelworld"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}

	log.Info("🔌 NATS шина подключена: %s (subject: %s)", cfg.URL, cfg.Subject)
	return &NATSBus{conn: conn, subject: cfg.Subject}, nil
}

func (b *NATSBus) Publish(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.conn.IsClosed() {
		return ErrClosed
	}
	if err := b.conn.Publish(b.subject, frame); err != nil {
		b.errors.Add(1)
		return fmt.Errorf("nats publish: %w", err)
	}
	b.published.Add(1)
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, h FrameHandler) error {
	if b.conn.IsClosed() {
		return ErrClosed
	}
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		b.received.Add(1)
		h(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if sub.IsValid() {
			_ = sub.Unsubscribe()
		}
	}()
	return nil
}

func (b *NATSBus) Stats() Stats {
	return b.snapshot()
}

// Close дренирует подписки и закрывает соединение
func (b *NATSBus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
