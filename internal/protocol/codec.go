package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformed возвращается для кадров, которые не удалось разобрать
var ErrMalformed = errors.New("malformed frame")

// BatchCodec кодирует пакет изменений блоков в полезную нагрузку конверта
type BatchCodec interface {
	Encode(changes []BlockChange) ([]byte, error)
	Decode(payload []byte) ([]BlockChange, error)
}

type jsonCodec struct{}

// NewJSONCodec возвращает кодек без сжатия (удобен для отладки)
func NewJSONCodec() BatchCodec { return jsonCodec{} }

func (jsonCodec) Encode(changes []BlockChange) ([]byte, error) {
	return json.Marshal(changes)
}

func (jsonCodec) Decode(payload []byte) ([]BlockChange, error) {
	var changes []BlockChange
	if err := json.Unmarshal(payload, &changes); err != nil {
		return nil, fmt.Errorf("decode batch: %w: %v", ErrMalformed, err)
	}
	return changes, nil
}

// gzipCodec сжимает JSON-пакет; пакеты правок одного тика хорошо сжимаются
type gzipCodec struct {
	level int
}

// NewGzipCodec возвращает кодек JSON + gzip с указанным уровнем сжатия
func NewGzipCodec(level int) BatchCodec {
	if level < gzip.DefaultCompression || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return gzipCodec{level: level}
}

func (c gzipCodec) Encode(changes []BlockChange) ([]byte, error) {
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(raw); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c gzipCodec) Decode(payload []byte) ([]BlockChange, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode batch: %w: %v", ErrMalformed, err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decode batch: %w: %v", ErrMalformed, err)
	}
	return jsonCodec{}.Decode(raw)
}

// MarshalEnvelope сериализует конверт в кадр транспорта
func MarshalEnvelope(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// UnmarshalEnvelope разбирает кадр транспорта
func UnmarshalEnvelope(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrMalformed)
	}
	return &env, nil
}

// EncodeSeed упаковывает сид мира в полезную нагрузку
func EncodeSeed(seed int64) ([]byte, error) {
	return json.Marshal(SeedMessage{Seed: seed})
}

// DecodeSeed разбирает полезную нагрузку с сидом
func DecodeSeed(payload []byte) (int64, error) {
	var msg SeedMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return 0, fmt.Errorf("decode seed: %w: %v", ErrMalformed, err)
	}
	return msg.Seed, nil
}
