package main

import (
	"testing"
	"time"

	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEnvelope(t *testing.T) {
	codec := protocol.NewGzipCodec(6)
	payload, err := codec.Encode([]protocol.BlockChange{protocol.Place(1, 2, 3, "stone"), protocol.Remove(4, 5, 6)})
	require.NoError(t, err)

	out := formatEnvelope(&protocol.Envelope{
		Kind: protocol.KindBlockBatch, Origin: "node-a", Seq: 7,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Payload: payload,
	}, codec)

	assert.Contains(t, out, "node-a #7 [block_batch]")
	assert.Contains(t, out, "stone(1,2,3)")
	assert.Contains(t, out, "remove(4,5,6)")
}

func TestKindFilter(t *testing.T) {
	assert.Equal(t, []string{"seed", "block_batch"}, parseStringList(" seed, ,block_batch"))
	assert.True(t, matchKind(protocol.KindSeed, nil))
	assert.True(t, matchKind(protocol.KindSeed, []string{"seed"}))
	assert.False(t, matchKind(protocol.KindBlockBatch, []string{"seed"}))
}
