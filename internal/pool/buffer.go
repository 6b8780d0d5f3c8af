// Package pool provides memory management optimizations.
// This includes reuse of the encode buffers that back multipart chunk
// batches, which would otherwise be reallocated at up to the server's max
// request size for every batch.
package pool

import (
	"bytes"
	"sync"
)

// MaxPooledCapacity is the largest buffer capacity returned to the pool.
// Batches are bounded by the negotiated max request size, which is typically
// in the tens of megabytes; buffers that grew beyond this are dropped so a
// single oversized batch does not pin memory for the rest of the run.
const MaxPooledCapacity = 64 * 1024 * 1024

// BufferPool manages reusable byte buffers for batch encoding.
type BufferPool struct {
	pool *sync.Pool
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get returns an empty buffer from the pool.
// The caller is responsible for calling Put to return it.
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool.
// The buffer must not be used after calling Put.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > MaxPooledCapacity {
		return
	}
	bp.pool.Put(buf)
}

// Global buffer pool instance for use throughout the module.
var globalBufferPool = NewBufferPool()

// GetBuffer returns an empty buffer from the global pool.
func GetBuffer() *bytes.Buffer {
	return globalBufferPool.Get()
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf *bytes.Buffer) {
	globalBufferPool.Put(buf)
}
