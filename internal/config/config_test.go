package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.World.ChunkSize)
	assert.Equal(t, 6, cfg.EffectiveUnloadRadius(), "по умолчанию радиус выгрузки = загрузки + 2")
	assert.Equal(t, 16.0, cfg.Physics.MaxRayDistance)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world:
  seed: 1234
  y_max: 6
streaming:
  load_radius: 8
network:
  transport: nats
blocks:
  non_solid: [leaves]
  custom:
    - name: lava
      liquid: true
      transparent: true
`)
	t.Setenv("VOXEL_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cfg.World.Seed)
	assert.Equal(t, 6, cfg.World.YMax)
	assert.Equal(t, 16, cfg.World.ChunkSize, "незаданные поля сохраняют значения по умолчанию")
	assert.Equal(t, 10, cfg.EffectiveCullDistance())

	reg, err := cfg.BuildRegistry()
	require.NoError(t, err)
	assert.False(t, reg.IsSolid(block.Leaves))
	lava, ok := reg.Lookup("lava")
	require.True(t, ok)
	assert.False(t, reg.IsSolid(lava))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"chunk size":     "world: {chunk_size: 0}",
		"vertical range": "world: {y_min: 3, y_max: 3}",
		"unload radius":  "streaming: {load_radius: 4, unload_radius: 4}",
		"transport":      "network: {transport: carrier-pigeon}",
		"tick rate":      "engine: {tick_rate: 0}",
		"ray zero":       "physics: {max_ray_distance: 0}",
		"ray too far":    "physics: {max_ray_distance: 1000}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestUnknownNonSolidBlock(t *testing.T) {
	cfg := Default()
	cfg.Blocks.NonSolid = []string{"unobtainium"}
	_, err := cfg.BuildRegistry()
	assert.ErrorIs(t, err, block.ErrUnknownBlock)
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("VOXEL_REST_PORT", "9099")
	t.Setenv("VOXEL_NATS_URL", "nats://nats:4222")

	cfg := Default()
	assert.Equal(t, 9099, cfg.Server.GetRESTPort())
	assert.Equal(t, "nats://nats:4222", cfg.Network.GetNATSURL())

	cfg.Server.RESTPort = 7000
	assert.Equal(t, 7000, cfg.Server.GetRESTPort(), "значение из файла важнее окружения")

	t.Setenv("VOXEL_REST_PORT", "garbage")
	assert.Equal(t, 8088, Default().Server.GetRESTPort())
}
