package protocol

import (
	"fmt"
	"time"
)

// BlockChange сообщение об изменении одного блока.
// BlockType == nil означает удаление блока.
type BlockChange struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Z         int     `json:"z"`
	BlockType *string `json:"blockType"`
}

// Place создаёт сообщение об установке блока
func Place(x, y, z int, blockType string) BlockChange {
	return BlockChange{X: x, Y: y, Z: z, BlockType: &blockType}
}

// Remove создаёт сообщение об удалении блока
func Remove(x, y, z int) BlockChange {
	return BlockChange{X: x, Y: y, Z: z}
}

// IsRemoval возвращает true для сообщения об удалении
func (c BlockChange) IsRemoval() bool {
	return c.BlockType == nil
}

// TypeName возвращает имя типа блока или пустую строку для удаления
func (c BlockChange) TypeName() string {
	if c.BlockType == nil {
		return ""
	}
	return *c.BlockType
}

func (c BlockChange) String() string {
	if c.BlockType == nil {
		return fmt.Sprintf("remove(%d,%d,%d)", c.X, c.Y, c.Z)
	}
	return fmt.Sprintf("%s(%d,%d,%d)", *c.BlockType, c.X, c.Y, c.Z)
}

// SeedMessage обмен сидом мира. Сид применяется, только если мир ещё не сгенерирован.
type SeedMessage struct {
	Seed int64 `json:"seed"`
}

// Kind тип содержимого конверта
type Kind string

const (
	KindBlockBatch Kind = "block_batch"
	KindSeed       Kind = "seed"
)

// CurrentVersion версия схемы полезной нагрузки
const CurrentVersion = 1

// Envelope контейнер кадра, передаваемого через транспорт
type Envelope struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Origin    string    `json:"origin"` // идентификатор узла-отправителя, для подавления эха
	Seq       uint64    `json:"seq"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"ts"`
	Payload   []byte    `json:"payload"`
}
