// Package chunker splits artifact content into fixed-size, content-hashed
// chunks. Splitting is a pure transform: the same content and chunk size
// always produce the same checksum and the same chunk hash sequence, which is
// what makes server-side deduplication work.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// Sum returns the hex digest of data under the given algorithm.
func Sum(data []byte, alg pubtypes.HashAlgorithm) (string, error) {
	switch alg {
	case pubtypes.HashSHA1:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:]), nil
	case pubtypes.HashBLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", puberrors.NewError("sum", puberrors.ErrUnsupportedHash).
			WithMessage(fmt.Sprintf("algorithm %q", alg))
	}
}

// Supported reports whether the client can compute the given algorithm.
func Supported(alg pubtypes.HashAlgorithm) bool {
	return alg == pubtypes.HashSHA1 || alg == pubtypes.HashBLAKE3
}

// Split cuts content into chunkSize-byte chunks (the final chunk may be
// shorter) and returns the artifact with its whole-content checksum and
// ordered chunk list. Chunks reference slices of content; the caller must
// keep it immutable for the run.
func Split(
	name, debugID string,
	content []byte,
	chunkSize int64,
	alg pubtypes.HashAlgorithm,
) (*pubtypes.Artifact, error) {
	if chunkSize <= 0 {
		return nil, puberrors.NewError("split", puberrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("chunk size must be positive, got %d", chunkSize))
	}

	checksum, err := Sum(content, alg)
	if err != nil {
		return nil, err
	}

	art := &pubtypes.Artifact{
		Name:     name,
		DebugID:  debugID,
		Checksum: checksum,
		Size:     int64(len(content)),
		Content:  content,
	}

	for offset := int64(0); offset < int64(len(content)); offset += chunkSize {
		end := offset + chunkSize
		if end > int64(len(content)) {
			end = int64(len(content))
		}
		hash, err := Sum(content[offset:end], alg)
		if err != nil {
			return nil, err
		}
		art.Chunks = append(art.Chunks, pubtypes.Chunk{
			Hash:   hash,
			Offset: offset,
			Size:   end - offset,
			Owner:  art,
		})
	}

	// An empty artifact still assembles: it has a checksum and no chunks.
	return art, nil
}
