package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/voxelworld/internal/world/block"
	"gopkg.in/yaml.v3"
)

// ErrInvalid возвращается, если конфигурация не проходит проверку
var ErrInvalid = errors.New("invalid config")

// Config корневая структура конфигурации сервера мира
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Streaming StreamingConfig `yaml:"streaming"`
	Mesh      MeshConfig      `yaml:"mesh"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Blocks    BlocksConfig    `yaml:"blocks"`
	Network   NetworkConfig   `yaml:"network"`
	Engine    EngineConfig    `yaml:"engine"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type WorldConfig struct {
	ChunkSize int   `yaml:"chunk_size"`
	YMin      int   `yaml:"y_min"` // в чанках, включительно
	YMax      int   `yaml:"y_max"` // в чанках, исключительно
	Seed      int64 `yaml:"seed"`
}

type StreamingConfig struct {
	LoadRadius        int `yaml:"load_radius"`
	UnloadRadius      int `yaml:"unload_radius"`
	MaxColumnsPerTick int `yaml:"max_columns_per_tick"`
	WorldRadius       int `yaml:"world_radius"`
	RetryDelayTicks   int `yaml:"retry_delay_ticks"`
}

type MeshConfig struct {
	MaxPerTick   int `yaml:"max_per_tick"`
	CullDistance int `yaml:"cull_distance"` // 0 означает LoadRadius+2
}

type PhysicsConfig struct {
	// MaxRayDistance потолок дальности луча выбора блока; луч идёт в потоке движка
	MaxRayDistance float64 `yaml:"max_ray_distance"`
}

type TerrainConfig struct {
	SeaLevel     int     `yaml:"sea_level"`
	BaseHeight   int     `yaml:"base_height"`
	Amplitude    float64 `yaml:"amplitude"`
	Scale        float64 `yaml:"scale"`
	TreeChance   float64 `yaml:"tree_chance"`
	FlowerChance float64 `yaml:"flower_chance"`
}

type BlocksConfig struct {
	// NonSolid дополнительные проходимые типы
	NonSolid []string `yaml:"non_solid"`
	// Custom новые типы или переопределение стандартных
	Custom []block.Properties `yaml:"custom"`
}

type NetworkConfig struct {
	Transport        string `yaml:"transport"` // none | memory | nats | redis | websocket
	NodeID           string `yaml:"node_id"`   // пусто означает случайный UUID
	NATSURL          string `yaml:"nats_url"`
	RedisURL         string `yaml:"redis_url"`
	Subject          string `yaml:"subject"` // тема NATS / канал Redis
	FlushEveryTicks  int    `yaml:"flush_every_ticks"`
	CompressionLevel int    `yaml:"compression_level"`
	InboundBuffer    int    `yaml:"inbound_buffer"`
	MaxBatch         int    `yaml:"max_batch"`
	// WebSocketURL адрес хаба другого узла; если пусто, узел сам обслуживает /ws
	WebSocketURL string `yaml:"websocket_url"`

	// SeedAuthority узел рассылает свой сид; остальные принимают его до первой генерации
	SeedAuthority     bool `yaml:"seed_authority"`
	SeedAnnounceTicks int  `yaml:"seed_announce_ticks"`
}

type EngineConfig struct {
	TickRate int `yaml:"tick_rate"` // тиков в секунду
}

type ServerConfig struct {
	RESTPort int    `yaml:"rest_port"`
	Bind     string `yaml:"bind"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	FileLevel string `yaml:"file_level"`
	Dir       string `yaml:"dir"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// MaxRayDistanceLimit верхняя граница physics.max_ray_distance
const MaxRayDistanceLimit = 256

// Transport names
const (
	TransportNone      = "none"
	TransportMemory    = "memory"
	TransportNATS      = "nats"
	TransportRedis     = "redis"
	TransportWebSocket = "websocket"
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World:     WorldConfig{ChunkSize: 16, YMin: 0, YMax: 4},
		Streaming: StreamingConfig{LoadRadius: 4, MaxColumnsPerTick: 3, RetryDelayTicks: 30},
		Mesh:      MeshConfig{MaxPerTick: 3},
		Physics:   PhysicsConfig{MaxRayDistance: 16},
		Terrain: TerrainConfig{
			SeaLevel:     12,
			BaseHeight:   16,
			Amplitude:    10,
			Scale:        0.03,
			TreeChance:   0.012,
			FlowerChance: 0.05,
		},
		Network: NetworkConfig{
			Transport:         TransportNone,
			Subject:           "voxel.blocks",
			FlushEveryTicks:   1,
			CompressionLevel:  6,
			InboundBuffer:     1024,
			SeedAnnounceTicks: 300,
		},
		Engine:    EngineConfig{TickRate: 60},
		Server:    ServerConfig{Bind: "0.0.0.0"},
		Logging:   LoggingConfig{Level: "info", FileLevel: "debug"},
		Telemetry: TelemetryConfig{ServiceName: "voxelworld"},
	}
}

// GetRESTPort возвращает порт REST API: config -> env -> default
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetNATSURL возвращает адрес NATS: config -> env -> default
func (n *NetworkConfig) GetNATSURL() string {
	return getStringWithEnvFallback(n.NATSURL, "VOXEL_NATS_URL", "nats://127.0.0.1:4222")
}

// GetRedisURL возвращает адрес Redis: config -> env -> default
func (n *NetworkConfig) GetRedisURL() string {
	return getStringWithEnvFallback(n.RedisURL, "VOXEL_REDIS_URL", "redis://127.0.0.1:6379/0")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

func getStringWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return def
}

// Load читает YAML файл поверх значений по умолчанию.
// Если path == "", берётся ENV VOXEL_CONFIG; если и он пуст, возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	switch {
	case c.World.ChunkSize <= 0:
		return fmt.Errorf("%w: world.chunk_size must be positive", ErrInvalid)
	case c.World.YMax <= c.World.YMin:
		return fmt.Errorf("%w: world.y_max must be greater than world.y_min", ErrInvalid)
	case c.Streaming.LoadRadius < 0:
		return fmt.Errorf("%w: streaming.load_radius must not be negative", ErrInvalid)
	case c.Streaming.UnloadRadius != 0 && c.Streaming.UnloadRadius <= c.Streaming.LoadRadius:
		return fmt.Errorf("%w: streaming.unload_radius must be greater than load_radius", ErrInvalid)
	case c.Mesh.MaxPerTick < 0 || c.Streaming.MaxColumnsPerTick < 0:
		return fmt.Errorf("%w: per-tick budgets must not be negative", ErrInvalid)
	case c.Physics.MaxRayDistance <= 0 || c.Physics.MaxRayDistance > MaxRayDistanceLimit:
		return fmt.Errorf("%w: physics.max_ray_distance must be in (0, %d]", ErrInvalid, MaxRayDistanceLimit)
	case c.Engine.TickRate <= 0:
		return fmt.Errorf("%w: engine.tick_rate must be positive", ErrInvalid)
	}

	switch c.Network.Transport {
	case "", TransportNone, TransportMemory, TransportNATS, TransportRedis, TransportWebSocket:
	default:
		return fmt.Errorf("%w: unknown network.transport %q", ErrInvalid, c.Network.Transport)
	}
	return nil
}

// EffectiveUnloadRadius возвращает радиус выгрузки с подстановкой значения по умолчанию
func (c *Config) EffectiveUnloadRadius() int {
	if c.Streaming.UnloadRadius > c.Streaming.LoadRadius {
		return c.Streaming.UnloadRadius
	}
	return c.Streaming.LoadRadius + 2
}

// EffectiveCullDistance возвращает дальность отсечения мешей (в чанках)
func (c *Config) EffectiveCullDistance() int {
	if c.Mesh.CullDistance > 0 {
		return c.Mesh.CullDistance
	}
	return c.Streaming.LoadRadius + 2
}

// BuildRegistry собирает реестр блоков: стандартный набор + пользовательские типы
func (c *Config) BuildRegistry() (*block.Registry, error) {
	reg := block.Default()
	if err := reg.Apply(c.Blocks.Custom); err != nil {
		return nil, fmt.Errorf("blocks.custom: %w", err)
	}
	if err := reg.SetNonSolid(c.Blocks.NonSolid...); err != nil {
		return nil, fmt.Errorf("blocks.non_solid: %w", err)
	}
	return reg, nil
}
