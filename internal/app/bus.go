package app

import (
	"context"
	"fmt"

	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/transport"
)

// Network открытый транспорт узла. Hub заполнен, когда узел сам
// обслуживает WebSocket-клиентов; его нужно смонтировать на /ws.
type Network struct {
	Bus transport.Bus
	Hub *transport.WebSocketHub
}

// Close закрывает транспорт
func (n *Network) Close() error {
	if n == nil || n.Bus == nil {
		return nil
	}
	return n.Bus.Close()
}

// OpenNetwork создаёт транспорт по конфигурации. Для "none" возвращает пустой Network.
func OpenNetwork(ctx context.Context, cfg config.NetworkConfig) (*Network, error) {
	switch cfg.Transport {
	case "", config.TransportNone:
		return &Network{}, nil
	case config.TransportMemory:
		return &Network{Bus: transport.NewMemoryHub(cfg.InboundBuffer)}, nil
	case config.TransportNATS:
		bus, err := transport.NewNATSBus(transport.NATSConfig{URL: cfg.GetNATSURL(), Subject: cfg.Subject})
		if err != nil {
			return nil, err
		}
		return &Network{Bus: bus}, nil
	case config.TransportRedis:
		bus, err := transport.NewRedisBus(ctx, transport.RedisConfig{URL: cfg.GetRedisURL(), Channel: cfg.Subject})
		if err != nil {
			return nil, err
		}
		return &Network{Bus: bus}, nil
	case config.TransportWebSocket:
		if cfg.WebSocketURL != "" {
			client, err := transport.DialWebSocket(ctx, cfg.WebSocketURL)
			if err != nil {
				return nil, err
			}
			return &Network{Bus: client}, nil
		}
		hub := transport.NewWebSocketHub(cfg.InboundBuffer)
		return &Network{Bus: hub, Hub: hub}, nil
	default:
		return nil, fmt.Errorf("%w: unknown network.transport %q", config.ErrInvalid, cfg.Transport)
	}
}
