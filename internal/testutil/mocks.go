// Package testutil provides shared test doubles and fixture builders for the
// chunkpub test suites.
package testutil

import (
	"context"
	"sync"

	"github.com/symkit/chunkpub/internal/api"
	"github.com/symkit/chunkpub/internal/chunker"
	"github.com/symkit/chunkpub/pubtypes"
)

// MockAPI is a scriptable api.API implementation. Tests set the behavior
// function for each operation they expect; unset operations return zero
// values. Call counts are tracked per operation and safe for concurrent use.
type MockAPI struct {
	mu sync.Mutex

	// CapabilitiesFunc scripts Capabilities.
	CapabilitiesFunc func(ctx context.Context) (*api.CapabilitiesResponse, error)

	// AssembleFunc scripts Assemble. Invocations are counted so tests can
	// script different responses per round.
	AssembleFunc func(ctx context.Context, path string, req map[string]api.AssembleRequestEntry) (map[string]api.AssembleResponseEntry, error)

	// UploadChunksFunc scripts UploadChunks.
	UploadChunksFunc func(ctx context.Context, url, contentType string, body []byte) error

	// CapabilitiesCalls counts Capabilities invocations.
	CapabilitiesCalls int

	// AssembleCalls counts Assemble invocations.
	AssembleCalls int

	// AssembleRequests records each assemble request body, in call order.
	AssembleRequests []map[string]api.AssembleRequestEntry

	// UploadCalls counts UploadChunks invocations.
	UploadCalls int

	// UploadBodies records each uploaded body together with its content type.
	UploadBodies []UploadedBody
}

// UploadedBody is one recorded UploadChunks invocation.
type UploadedBody struct {
	URL         string
	ContentType string
	Body        []byte
}

// Capabilities implements api.API.
func (m *MockAPI) Capabilities(ctx context.Context) (*api.CapabilitiesResponse, error) {
	m.mu.Lock()
	m.CapabilitiesCalls++
	fn := m.CapabilitiesFunc
	m.mu.Unlock()
	if fn == nil {
		return &api.CapabilitiesResponse{}, nil
	}
	return fn(ctx)
}

// Assemble implements api.API.
func (m *MockAPI) Assemble(ctx context.Context, path string, req map[string]api.AssembleRequestEntry) (map[string]api.AssembleResponseEntry, error) {
	m.mu.Lock()
	m.AssembleCalls++
	m.AssembleRequests = append(m.AssembleRequests, req)
	fn := m.AssembleFunc
	m.mu.Unlock()
	if fn == nil {
		return map[string]api.AssembleResponseEntry{}, nil
	}
	return fn(ctx, path, req)
}

// UploadChunks implements api.API.
func (m *MockAPI) UploadChunks(ctx context.Context, url, contentType string, body []byte) error {
	m.mu.Lock()
	m.UploadCalls++
	// The caller reuses the body buffer across batches; keep a copy.
	recorded := make([]byte, len(body))
	copy(recorded, body)
	m.UploadBodies = append(m.UploadBodies, UploadedBody{URL: url, ContentType: contentType, Body: recorded})
	fn := m.UploadChunksFunc
	m.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, url, contentType, body)
}

// Calls returns the per-operation invocation counts under the mock's lock.
func (m *MockAPI) Calls() (capabilities, assemble, upload int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CapabilitiesCalls, m.AssembleCalls, m.UploadCalls
}

// Caps builds a ServerCapabilities with sensible test defaults. Pass
// modifiers to adjust individual fields.
func Caps(mods ...func(*pubtypes.ServerCapabilities)) pubtypes.ServerCapabilities {
	caps := pubtypes.ServerCapabilities{
		UploadURL:           "https://example.invalid/api/0/organizations/acme/chunk-upload/",
		ChunkSize:           8,
		MaxChunksPerRequest: 4,
		MaxRequestSize:      64,
		Concurrency:         2,
		Hash:                pubtypes.HashSHA1,
		Accept:              pubtypes.NewFeatureSet([]string{"debug_files"}),
	}
	for _, mod := range mods {
		mod(&caps)
	}
	return caps
}

// BuildArtifact chunks the given content with the test default chunk size
// and SHA1 hashing. Tests that need other parameters call chunker.Split
// directly.
func BuildArtifact(t interface{ Fatalf(string, ...any) }, name, debugID string, content []byte) *pubtypes.Artifact {
	art, err := chunker.Split(name, debugID, content, 8, pubtypes.HashSHA1)
	if err != nil {
		t.Fatalf("building test artifact %q: %v", name, err)
	}
	return art
}

// ChunkPointers returns pointers to all chunks of the given artifacts, in
// artifact and offset order.
func ChunkPointers(artifacts ...*pubtypes.Artifact) []*pubtypes.Chunk {
	var out []*pubtypes.Chunk
	for _, art := range artifacts {
		for i := range art.Chunks {
			out = append(out, &art.Chunks[i])
		}
	}
	return out
}
