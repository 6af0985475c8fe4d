package terrain

import (
	"math"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/aquilax/go-perlin"
)

// Параметры шума Перлина
const (
	noiseAlpha  = 2.0 // сглаживание
	noiseBeta   = 2.0 // частота
	noiseOctave = int32(3)
)

// Config параметры рельефа
type Config struct {
	SeaLevel     int     `yaml:"sea_level"`
	BaseHeight   int     `yaml:"base_height"`
	Amplitude    float64 `yaml:"amplitude"`
	Scale        float64 `yaml:"scale"`
	TreeChance   float64 `yaml:"tree_chance"`
	FlowerChance float64 `yaml:"flower_chance"`
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		SeaLevel:     12,
		BaseHeight:   16,
		Amplitude:    10,
		Scale:        0.03,
		TreeChance:   0.012,
		FlowerChance: 0.05,
	}
}

// Generator детерминированный по сиду генератор рельефа:
// бедрок, камень, земля, трава, песок у воды, вода ниже уровня моря, деревья и цветы
type Generator struct {
	cfg       Config
	chunkSize int
	seed      int64
	noise     *perlin.Perlin
}

// NewGenerator создаёт генератор для чанков с ребром chunkSize
func NewGenerator(chunkSize int, seed int64, cfg Config) *Generator {
	g := &Generator{cfg: cfg, chunkSize: chunkSize}
	g.SetSeed(seed)
	return g
}

// SetSeed пересоздаёт шум с новым сидом
func (g *Generator) SetSeed(seed int64) {
	g.seed = seed
	g.noise = perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctave, seed)
}

// Seed возвращает текущий сид
func (g *Generator) Seed() int64 {
	return g.seed
}

// Height возвращает высоту поверхности в колонке (x, z)
func (g *Generator) Height(x, z int) int {
	n := g.noise.Noise2D(float64(x)*g.cfg.Scale, float64(z)*g.cfg.Scale)
	return g.cfg.BaseHeight + int(math.Round(n*g.cfg.Amplitude))
}

// GenerateChunk реализует world.Generator
func (g *Generator) GenerateChunk(coord world.ChunkCoord, out world.BlockWriter) error {
	n := g.chunkSize
	startX, startY, startZ := coord.X*n, coord.Y*n, coord.Z*n
	opts := world.SetOptions{SkipBroadcast: true, SkipMeshSchedule: true}

	for x := 0; x < n; x++ {
		for z := 0; z < n; z++ {
			wx, wz := startX+x, startZ+z
			h := g.Height(wx, wz)

			for y := 0; y < n; y++ {
				wy := startY + y
				if id := g.blockAt(wy, h); id != block.Air {
					out.SetBlock(vec.Vec3{X: wx, Y: wy, Z: wz}, id, opts)
				}
			}

			// украшения ставятся чанком, в котором лежит поверхность
			if h+1 >= startY && h+1 < startY+n {
				g.decorate(wx, h, wz, out, opts)
			}
		}
	}
	return nil
}

// blockAt возвращает блок рельефа на высоте wy для колонки с поверхностью h
func (g *Generator) blockAt(wy, h int) block.ID {
	switch {
	case wy < 0:
		return block.Air
	case wy == 0:
		return block.Bedrock
	case wy == h:
		if h < g.cfg.SeaLevel+2 {
			return block.Sand
		}
		return block.Grass
	case wy < h && wy > h-4:
		return block.Dirt
	case wy < h:
		return block.Stone
	case wy <= g.cfg.SeaLevel:
		return block.Water
	}
	return block.Air
}

func (g *Generator) decorate(wx, h, wz int, out world.BlockWriter, opts world.SetOptions) {
	if h <= g.cfg.SeaLevel+1 {
		return
	}
	r := g.hash(wx, wz)
	switch {
	case r < g.cfg.TreeChance:
		g.placeTree(wx, h+1, wz, 4+int(g.hash(wz, wx)*3), out, opts)
	case r < g.cfg.TreeChance+g.cfg.FlowerChance:
		plant := block.LongGrass
		if g.hash(wx+7, wz-3) < 0.3 {
			plant = block.FlowerRed
		}
		out.SetBlock(vec.Vec3{X: wx, Y: h + 1, Z: wz}, plant, opts)
	}
}

// placeTree ставит ствол и крону; крона может выходить в соседние чанки
func (g *Generator) placeTree(x, y, z, height int, out world.BlockWriter, opts world.SetOptions) {
	top := y + height
	for dy := -2; dy <= 1; dy++ {
		radius := 2
		if dy == 1 {
			radius = 1
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				if vec.Abs(dx) == radius && vec.Abs(dz) == radius && radius > 1 {
					continue // скруглённые углы
				}
				out.SetBlock(vec.Vec3{X: x + dx, Y: top + dy, Z: z + dz}, block.Leaves, opts)
			}
		}
	}
	for ty := y; ty < top; ty++ {
		out.SetBlock(vec.Vec3{X: x, Y: ty, Z: z}, block.Wood, opts)
	}
}

// hash детерминированное псевдослучайное число [0, 1) для колонки (splitmix64)
func (g *Generator) hash(x, z int) float64 {
	v := uint64(g.seed) ^ uint64(int64(x))*0x9E3779B97F4A7C15 ^ uint64(int64(z))*0xC2B2AE3D27D4EB4F
	v ^= v >> 30
	v *= 0xBF58476D1CE4E5B9
	v ^= v >> 27
	v *= 0x94D049BB133111EB
	v ^= v >> 31
	return float64(v>>11) / float64(1<<53)
}
