// Package errors provides error types and handling for chunked publish
// operations.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a publish operation error with context about the
// operation that failed. It wraps the underlying transport or protocol error
// with the artifact checksum and chunk hash involved, when known.
type Error struct {
	// Op is the operation that failed (e.g., "negotiate", "assemble",
	// "uploadChunks")
	Op string

	// Checksum is the whole-artifact checksum (if applicable)
	Checksum string

	// Chunk is the chunk hash (if applicable)
	Chunk string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Checksum != "" && e.Chunk != "" {
		return fmt.Sprintf("chunkpub.%s %s chunk %s: %v", e.Op, e.Checksum, e.Chunk, e.Err)
	}
	if e.Checksum != "" {
		return fmt.Sprintf("chunkpub.%s %s: %v", e.Op, e.Checksum, e.Err)
	}
	if e.Chunk != "" {
		return fmt.Sprintf("chunkpub.%s chunk %s: %v", e.Op, e.Chunk, e.Err)
	}
	return fmt.Sprintf("chunkpub.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithChecksum adds artifact checksum context to an existing error.
func (e *Error) WithChecksum(checksum string) *Error {
	e.Checksum = checksum
	return e
}

// WithChunk adds chunk hash context to an existing error.
func (e *Error) WithChunk(hash string) *Error {
	e.Chunk = hash
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// Sentinel errors for common publish failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrCapability indicates a malformed or incomplete capabilities
	// response; fatal before any upload
	ErrCapability = errors.New("chunkpub: capability negotiation failed")

	// ErrMissingField indicates a required capabilities field was absent
	ErrMissingField = errors.New("chunkpub: missing capability field")

	// ErrUnsupportedHash indicates the server requires a hash algorithm
	// the client cannot compute
	ErrUnsupportedHash = errors.New("chunkpub: unsupported hash algorithm")

	// ErrUnsupportedVariant indicates no accepted assembly variant is
	// understood by the client
	ErrUnsupportedVariant = errors.New("chunkpub: no supported assembly variant")

	// ErrChunkTooLarge indicates a single chunk exceeds the server's
	// per-request byte limit; a configuration error, never retried
	ErrChunkTooLarge = errors.New("chunkpub: chunk exceeds max request size")

	// ErrChunkUpload indicates a chunk batch failed after its retry budget
	ErrChunkUpload = errors.New("chunkpub: chunk upload failed")

	// ErrAssembleRejected indicates the server reported state "error" for
	// an artifact
	ErrAssembleRejected = errors.New("chunkpub: assembly rejected by server")

	// ErrRoundBudget indicates the assemble round budget was exhausted
	// before every artifact reached a terminal state
	ErrRoundBudget = errors.New("chunkpub: assemble round budget exhausted")

	// ErrPartialFailure indicates some artifacts completed and others failed
	ErrPartialFailure = errors.New("chunkpub: some artifacts failed to publish")

	// ErrInvalidInput indicates the provided input is invalid
	ErrInvalidInput = errors.New("chunkpub: invalid input")

	// ErrCancelled indicates the run was interrupted before completion
	ErrCancelled = errors.New("chunkpub: publish cancelled")
)

// IsCapability checks if an error stems from capability negotiation.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsCapability(err error) bool {
	return errors.Is(err, ErrCapability) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnsupportedHash) ||
		errors.Is(err, ErrUnsupportedVariant)
}

// IsChunkUpload checks if an error indicates a failed chunk upload.
func IsChunkUpload(err error) bool {
	return errors.Is(err, ErrChunkUpload)
}

// IsPartialFailure checks if an error indicates a partially failed run.
func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}

// IsCancelled checks if an error indicates an interrupted run.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// ChunkUploadError reports the chunk hashes left unresolved after a batch
// exhausted its retry budget.
type ChunkUploadError struct {
	// Unresolved holds the hashes of chunks the server never acknowledged.
	Unresolved []string

	// Err is the last transport error observed.
	Err error
}

// Error implements the error interface.
func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("%v: unresolved chunks [%s]: %v",
		ErrChunkUpload, strings.Join(e.Unresolved, ", "), e.Err)
}

// Unwrap returns ErrChunkUpload so errors.Is matching works, alongside the
// transport cause.
func (e *ChunkUploadError) Unwrap() []error {
	return []error{ErrChunkUpload, e.Err}
}
