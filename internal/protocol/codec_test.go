package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockChangeWireFormat(t *testing.T) {
	data, err := json.Marshal(Remove(1, -2, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":-2,"z":3,"blockType":null}`, string(data), "удаление передаётся как null")

	data, err = json.Marshal(Place(4, 5, 6, "stone"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":4,"y":5,"z":6,"blockType":"stone"}`, string(data))
}

func TestGzipCodecBatch(t *testing.T) {
	codec := NewGzipCodec(-100) // некорректный уровень заменяется на уровень по умолчанию
	batch := []BlockChange{Place(15, 5, 3, "stone"), Remove(-1, 0, -17)}

	payload, err := codec.Encode(batch)
	require.NoError(t, err)

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "stone", decoded[0].TypeName())
	assert.True(t, decoded[1].IsRemoval())
	assert.Equal(t, -17, decoded[1].Z)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := NewGzipCodec(6).Decode([]byte("not gzip"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = UnmarshalEnvelope([]byte(`{"origin":"a"}`))
	assert.ErrorIs(t, err, ErrMalformed, "конверт без типа отклоняется")
}

func TestSeedPayload(t *testing.T) {
	payload, err := EncodeSeed(-42)
	require.NoError(t, err)
	seed, err := DecodeSeed(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), seed)
}
