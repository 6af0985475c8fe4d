package world

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxelworld/internal/vec"
)

// ErrOutOfRange возвращается для позиций за пределами поддерживаемого диапазона чанков
var ErrOutOfRange = errors.New("position out of supported chunk range")

// ChunkCoord координаты чанка; одна единица равна chunkSize блоков по каждой оси
type ChunkCoord struct {
	X, Y, Z int
}

// LocalCoord позиция блока внутри чанка, каждая ось в [0, chunkSize)
type LocalCoord struct {
	X, Y, Z int
}

// Add складывает координаты чанков (используется для смещений к соседям)
func (c ChunkCoord) Add(o ChunkCoord) ChunkCoord {
	return ChunkCoord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// Column возвращает горизонтальную колонку (cx, cz), которой принадлежит чанк
func (c ChunkCoord) Column() vec.Vec2 {
	return vec.Vec2{X: c.X, Y: c.Z}
}

// PlanarDistanceSq квадрат расстояния по X/Z между чанками
func (c ChunkCoord) PlanarDistanceSq(o ChunkCoord) int {
	return c.Column().DistanceSq(o.Column())
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("%d,%d,%d", c.X, c.Y, c.Z)
}

// ChunkKey упакованный ключ координат чанка (21 бит на ось).
// Ключ без коллизий для координат чанков в [MinChunkCoord, MaxChunkCoord].
// Координаты вне диапазона не поддерживаются.
type ChunkKey int64

const (
	keyBits = 21
	keyMask = 1<<keyBits - 1
	keyBias = 1 << (keyBits - 1)

	// MinChunkCoord и MaxChunkCoord задают поддерживаемый диапазон координат чанков
	MinChunkCoord = -keyBias
	MaxChunkCoord = keyBias - 1
)

// InRange сообщает, представим ли чанк ключом без коллизий
func (c ChunkCoord) InRange() bool {
	return c.X >= MinChunkCoord && c.X <= MaxChunkCoord &&
		c.Y >= MinChunkCoord && c.Y <= MaxChunkCoord &&
		c.Z >= MinChunkCoord && c.Z <= MaxChunkCoord
}

// Key возвращает ключ для хранения чанка в карте.
// Для координат вне InRange ключ совпадает с ключом другого чанка.
func (c ChunkCoord) Key() ChunkKey {
	x := uint64(c.X+keyBias) & keyMask
	y := uint64(c.Y+keyBias) & keyMask
	z := uint64(c.Z+keyBias) & keyMask
	return ChunkKey(x<<(2*keyBits) | y<<keyBits | z)
}

// Coord восстанавливает координаты чанка из ключа
func (k ChunkKey) Coord() ChunkCoord {
	u := uint64(k)
	return ChunkCoord{
		X: int((u>>(2*keyBits))&keyMask) - keyBias,
		Y: int((u>>keyBits)&keyMask) - keyBias,
		Z: int(u&keyMask) - keyBias,
	}
}

// faceOffsets шесть соседей по граням
var faceOffsets = [6]ChunkCoord{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

// FaceOffsets возвращает смещения шести соседей по граням
func FaceOffsets() [6]ChunkCoord {
	return faceOffsets
}

// Mapper переводит мировые координаты блоков в координаты чанков и обратно.
// Состояния не имеет, кроме размера чанка.
type Mapper struct {
	size int
}

// NewMapper создаёт преобразователь для чанков с ребром chunkSize
func NewMapper(chunkSize int) Mapper {
	if chunkSize <= 0 {
		panic(fmt.Sprintf("world: chunk size must be positive, got %d", chunkSize))
	}
	return Mapper{size: chunkSize}
}

// ChunkSize возвращает длину ребра чанка в блоках
func (m Mapper) ChunkSize() int {
	return m.size
}

// Volume возвращает количество ячеек в чанке
func (m Mapper) Volume() int {
	return m.size * m.size * m.size
}

// WorldToChunk раскладывает мировые координаты блока на чанк и локальную позицию.
// Деление с округлением вниз, поэтому отрицательные координаты попадают в правильный чанк.
func (m Mapper) WorldToChunk(pos vec.Vec3) (ChunkCoord, LocalCoord) {
	n := m.size
	return ChunkCoord{
			X: vec.FloorDiv(pos.X, n),
			Y: vec.FloorDiv(pos.Y, n),
			Z: vec.FloorDiv(pos.Z, n),
		}, LocalCoord{
			X: vec.Mod(pos.X, n),
			Y: vec.Mod(pos.Y, n),
			Z: vec.Mod(pos.Z, n),
		}
}

// WorldToChunkFloat то же для дробной позиции (сущности, наблюдатель)
func (m Mapper) WorldToChunkFloat(pos vec.Vec3Float) (ChunkCoord, LocalCoord) {
	return m.WorldToChunk(pos.Floor())
}

// InRange сообщает, лежит ли блок в поддерживаемом диапазоне чанков
func (m Mapper) InRange(pos vec.Vec3) bool {
	return m.ChunkOf(pos).InRange()
}

// InRangeFloat то же для дробной позиции; NaN и бесконечности вне диапазона.
// Проверка идёт до округления, чтобы огромные значения не переполнили int.
func (m Mapper) InRangeFloat(pos vec.Vec3Float) bool {
	lo := float64(MinChunkCoord) * float64(m.size)
	hi := float64(MaxChunkCoord+1) * float64(m.size)
	for _, v := range [3]float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || v < lo || v >= hi {
			return false
		}
	}
	return true
}

// ChunkOf возвращает только координаты чанка
func (m Mapper) ChunkOf(pos vec.Vec3) ChunkCoord {
	c, _ := m.WorldToChunk(pos)
	return c
}

// ChunkKey возвращает ключ чанка для карты
func (m Mapper) ChunkKey(c ChunkCoord) ChunkKey {
	return c.Key()
}

// Origin возвращает мировые координаты угла чанка с минимальными координатами
func (m Mapper) Origin(c ChunkCoord) vec.Vec3 {
	return vec.Vec3{X: c.X * m.size, Y: c.Y * m.size, Z: c.Z * m.size}
}

// ToWorld собирает мировые координаты из чанка и локальной позиции
func (m Mapper) ToWorld(c ChunkCoord, l LocalCoord) vec.Vec3 {
	return m.Origin(c).Add(vec.Vec3{X: l.X, Y: l.Y, Z: l.Z})
}

// Index возвращает индекс ячейки в плотном массиве чанка
func (m Mapper) Index(l LocalCoord) int {
	return l.X + l.Y*m.size + l.Z*m.size*m.size
}

// SeamOffsets возвращает смещения соседних чанков, чей меш зависит от ячейки l.
// Ячейка на границе (0 или chunkSize-1) влияет на отсечение граней у соседа по шву.
func (m Mapper) SeamOffsets(l LocalCoord) []ChunkCoord {
	last := m.size - 1
	offsets := make([]ChunkCoord, 0, 3)
	axis := func(v int, neg, pos ChunkCoord) {
		if v == 0 {
			offsets = append(offsets, neg)
		}
		if v == last {
			offsets = append(offsets, pos)
		}
	}
	axis(l.X, ChunkCoord{X: -1}, ChunkCoord{X: 1})
	axis(l.Y, ChunkCoord{Y: -1}, ChunkCoord{Y: 1})
	axis(l.Z, ChunkCoord{Z: -1}, ChunkCoord{Z: 1})
	return offsets
}
