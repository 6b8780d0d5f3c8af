// Package multipart encodes chunk batches as multipart/form-data request
// bodies: one part per chunk, each part named by its content hash, joined by
// a boundary token that satisfies the RFC 1341 §7.2 grammar.
package multipart

import (
	"bytes"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// boundaryPrefix keeps generated boundaries recognizable in captures.
// Prefix plus a UUID is 42 characters of the RFC 1341 charset, well under
// the 70-character limit.
const boundaryPrefix = "chunk-"

// NewBoundary generates a fresh boundary token, unique per request.
func NewBoundary() string {
	return boundaryPrefix + uuid.NewString()
}

// Encode writes the multipart body for one batch into buf and returns the
// Content-Type header value carrying the boundary. When gzipParts is set,
// each part's content is gzip-compressed; part names always carry the hash
// of the raw bytes.
func Encode(buf *bytes.Buffer, chunks []*pubtypes.Chunk, gzipParts bool) (string, error) {
	w := multipart.NewWriter(buf)
	if err := w.SetBoundary(NewBoundary()); err != nil {
		return "", puberrors.NewError("encodeBatch", err)
	}

	for _, chunk := range chunks {
		part, err := w.CreateFormFile(chunk.Hash, chunk.Hash)
		if err != nil {
			return "", puberrors.NewError("encodeBatch", err).WithChunk(chunk.Hash)
		}
		if gzipParts {
			zw := gzip.NewWriter(part)
			if _, err := zw.Write(chunk.Bytes()); err != nil {
				return "", puberrors.NewError("encodeBatch", err).WithChunk(chunk.Hash)
			}
			if err := zw.Close(); err != nil {
				return "", puberrors.NewError("encodeBatch", err).WithChunk(chunk.Hash)
			}
		} else if _, err := part.Write(chunk.Bytes()); err != nil {
			return "", puberrors.NewError("encodeBatch", err).WithChunk(chunk.Hash)
		}
	}

	if err := w.Close(); err != nil {
		return "", puberrors.NewError("encodeBatch", err)
	}
	return fmt.Sprintf("multipart/form-data; boundary=%s", w.Boundary()), nil
}
