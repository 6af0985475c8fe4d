package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig параметры Redis Pub/Sub
type RedisConfig struct {
	URL     string // redis://host:port/db
	Channel string
}

// RedisBus реализует Bus поверх Redis Pub/Sub
type RedisBus struct {
	counters

	client  *redis.Client
	channel string

	mu     sync.Mutex
	closed bool
	subs   []*redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisBus подключается к Redis и проверяет соединение
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	if cfg.Channel == "" {
		cfg.Channel = "voxel.blocks"
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetNetworkLogger().Info("🔌 Redis шина подключена: %s (channel: %s)", opts.Addr, cfg.Channel)
	return &RedisBus{client: client, channel: cfg.Channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, frame []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := b.client.Publish(ctx, b.channel, frame).Err(); err != nil {
		b.errors.Add(1)
		return fmt.Errorf("redis publish: %w", err)
	}
	b.published.Add(1)
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, h FrameHandler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	b.subs = append(b.subs, pubsub)
	b.mu.Unlock()

	// Ждём подтверждения подписки, иначе первые кадры могут потеряться
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.received.Add(1)
				h([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBus) Stats() Stats {
	return b.snapshot()
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	b.wg.Wait()
	return b.client.Close()
}
