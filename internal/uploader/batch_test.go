// Package uploader provides unit tests for batch packing.
package uploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// sized builds a dummy chunk of the given size; hash doubles as identity.
func sized(hash string, size int64) *pubtypes.Chunk {
	return &pubtypes.Chunk{Hash: hash, Size: size}
}

func TestPack(t *testing.T) {
	tests := []struct {
		name       string
		chunks     []*pubtypes.Chunk
		maxCount   int
		maxBytes   int64
		wantGroups [][]string
	}{
		{
			name:       "all fit in one batch",
			chunks:     []*pubtypes.Chunk{sized("a", 10), sized("b", 10)},
			maxCount:   4,
			maxBytes:   100,
			wantGroups: [][]string{{"a", "b"}},
		},
		{
			name:       "count limit splits",
			chunks:     []*pubtypes.Chunk{sized("a", 1), sized("b", 1), sized("c", 1)},
			maxCount:   2,
			maxBytes:   100,
			wantGroups: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:       "byte limit splits",
			chunks:     []*pubtypes.Chunk{sized("a", 60), sized("b", 60), sized("c", 10)},
			maxCount:   10,
			maxBytes:   100,
			wantGroups: [][]string{{"a"}, {"b", "c"}},
		},
		{
			name:       "chunk exactly at byte limit",
			chunks:     []*pubtypes.Chunk{sized("a", 100), sized("b", 1)},
			maxCount:   10,
			maxBytes:   100,
			wantGroups: [][]string{{"a"}, {"b"}},
		},
		{
			name:       "order is preserved across batches",
			chunks:     []*pubtypes.Chunk{sized("a", 90), sized("b", 20), sized("c", 90), sized("d", 5)},
			maxCount:   10,
			maxBytes:   100,
			wantGroups: [][]string{{"a"}, {"b"}, {"c", "d"}},
		},
		{
			name:       "no chunks",
			chunks:     nil,
			maxCount:   4,
			maxBytes:   100,
			wantGroups: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := Pack(tt.chunks, tt.maxCount, tt.maxBytes)
			require.NoError(t, err)
			require.Len(t, batches, len(tt.wantGroups))

			for i, want := range tt.wantGroups {
				assert.Equal(t, want, batches[i].hashes())

				var total int64
				for _, c := range batches[i].Chunks {
					total += c.Size
				}
				assert.Equal(t, total, batches[i].Bytes)
				assert.LessOrEqual(t, batches[i].Bytes, tt.maxBytes)
				assert.LessOrEqual(t, len(batches[i].Chunks), tt.maxCount)
			}
		})
	}
}

func TestPack_ChunkTooLarge(t *testing.T) {
	_, err := Pack([]*pubtypes.Chunk{sized("a", 10), sized("big", 101)}, 4, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, puberrors.ErrChunkTooLarge)
	assert.Contains(t, err.Error(), "big")
}
