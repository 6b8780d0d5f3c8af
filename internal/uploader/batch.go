// Package uploader transmits missing chunks to the assembly service in
// size- and count-bounded multipart batches over a bounded worker pool.
package uploader

import (
	"fmt"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// Batch is one bounded group of chunks transmitted in a single request.
type Batch struct {
	// Chunks are the batch members, in discovery order.
	Chunks []*pubtypes.Chunk

	// Bytes is the total raw size of the batch members.
	Bytes int64
}

// hashes lists the batch members' hashes, for failure reporting.
func (b *Batch) hashes() []string {
	out := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		out[i] = c.Hash
	}
	return out
}

// Pack greedily groups chunks, preserving input order, into batches that
// satisfy both the max-count and max-bytes limits. Input order is the
// coordinator's discovery order, so packing is deterministic for a given
// missing set.
//
// A chunk that alone exceeds maxBytes can never be transmitted under the
// negotiated limits; that is a configuration error, not a retryable one.
func Pack(chunks []*pubtypes.Chunk, maxCount int, maxBytes int64) ([]*Batch, error) {
	var batches []*Batch
	current := &Batch{}

	for _, chunk := range chunks {
		if chunk.Size > maxBytes {
			return nil, puberrors.NewError("pack", puberrors.ErrChunkTooLarge).
				WithChunk(chunk.Hash).
				WithMessage(fmt.Sprintf("chunk is %d bytes, server allows %d per request", chunk.Size, maxBytes))
		}
		if len(current.Chunks) >= maxCount || current.Bytes+chunk.Size > maxBytes {
			batches = append(batches, current)
			current = &Batch{}
		}
		current.Chunks = append(current.Chunks, chunk)
		current.Bytes += chunk.Size
	}
	if len(current.Chunks) > 0 {
		batches = append(batches, current)
	}
	return batches, nil
}
