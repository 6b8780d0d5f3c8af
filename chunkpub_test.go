// Package chunkpub provides end-to-end tests against a scripted assembly
// server.
package chunkpub

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// bytesSource is an in-memory artifact source.
type bytesSource struct {
	name    string
	debugID string
	content []byte
}

func (s *bytesSource) Name() string             { return s.name }
func (s *bytesSource) DebugID() string          { return s.debugID }
func (s *bytesSource) Content() ([]byte, error) { return s.content, nil }

// fakeServer is a minimal in-memory assembly service: it stores chunks keyed
// by hash and assembles artifacts once every chunk has arrived.
type fakeServer struct {
	t  *testing.T
	mu sync.Mutex

	chunkSize int64
	chunks    map[string][]byte
	assembled map[string]bool

	server *httptest.Server
}

func newFakeServer(t *testing.T, chunkSize int64) *fakeServer {
	fs := &fakeServer{
		t:         t,
		chunkSize: chunkSize,
		chunks:    make(map[string][]byte),
		assembled: make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /organizations/acme/chunk-upload/", fs.handleCapabilities)
	mux.HandleFunc("POST /organizations/acme/chunk-upload/", fs.handleUpload)
	mux.HandleFunc("POST /projects/acme/spacetools/files/difs/assemble/", fs.handleAssemble)
	fs.server = httptest.NewServer(mux)
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fakeServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	assert.Equal(fs.t, "Bearer test-token", r.Header.Get("Authorization"))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"url":              fs.server.URL + "/organizations/acme/chunk-upload/",
		"chunkSize":        fs.chunkSize,
		"chunksPerRequest": 2,
		"maxRequestSize":   1 << 20,
		"concurrency":      2,
		"hashAlgorithm":    "sha1",
		"accept":           []string{"debug_files"},
		"compression":      []string{},
	})
}

func (fs *fakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(fs.t, err)

	reader := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(fs.t, err)
		data, err := io.ReadAll(part)
		require.NoError(fs.t, err)

		// Each part's name must be the hash of its content.
		sum := sha1.Sum(data)
		require.Equal(fs.t, hex.EncodeToString(sum[:]), part.FormName())

		fs.mu.Lock()
		fs.chunks[part.FormName()] = data
		fs.mu.Unlock()
	}
	_, _ = w.Write([]byte(`[]`))
}

func (fs *fakeServer) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req map[string]struct {
		Name    string   `json:"name"`
		DebugID string   `json:"debug_id"`
		Chunks  []string `json:"chunks"`
	}
	require.NoError(fs.t, json.NewDecoder(r.Body).Decode(&req))

	fs.mu.Lock()
	defer fs.mu.Unlock()

	resp := make(map[string]any, len(req))
	for checksum, entry := range req {
		if fs.assembled[checksum] {
			resp[checksum] = map[string]any{"state": "ok", "missingChunks": []string{}}
			continue
		}
		var missing []string
		for _, hash := range entry.Chunks {
			if _, ok := fs.chunks[hash]; !ok {
				missing = append(missing, hash)
			}
		}
		if len(missing) == 0 {
			fs.assembled[checksum] = true
			resp[checksum] = map[string]any{"state": "created", "missingChunks": []string{}}
			continue
		}
		resp[checksum] = map[string]any{"state": "not_found", "missingChunks": missing}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, fs *fakeServer, opts ...pubtypes.Option) *Client {
	t.Helper()
	opts = append([]pubtypes.Option{
		WithProject("spacetools"),
		WithHTTPClient(fs.server.Client()),
		WithRetryIntervals(time.Millisecond, 5*time.Millisecond),
	}, opts...)
	client, err := New(fs.server.URL, "acme", pubtypes.StaticToken("test-token"), opts...)
	require.NoError(t, err)
	return client
}

func TestPublish_EndToEnd(t *testing.T) {
	fs := newFakeServer(t, 8)
	client := newTestClient(t, fs)

	content := bytes.Repeat([]byte("chunkpub"), 5) // 40 bytes, 5 chunks
	srcs := []pubtypes.ArtifactSource{
		&bytesSource{name: "app.bin", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: content},
	}

	result, err := client.Publish(context.Background(), srcs)
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, pubtypes.StatusComplete, result.Artifacts[0].Status)
	assert.True(t, result.Artifacts[0].Uploaded)
	assert.Equal(t, 2, result.Rounds)
	assert.Positive(t, result.ChunksUploaded)
	assert.Equal(t, int64(40), result.BytesUploaded)

	// The server reconstructed the content.
	whole := sha1.Sum(content)
	assert.Equal(t, hex.EncodeToString(whole[:]), result.Artifacts[0].Checksum)

	var reassembled []byte
	for i := 0; i < len(content); i += 8 {
		end := i + 8
		if end > len(content) {
			end = len(content)
		}
		part := sha1.Sum(content[i:end])
		reassembled = append(reassembled, fs.chunks[hex.EncodeToString(part[:])]...)
	}
	assert.Equal(t, content, reassembled)
}

func TestPublish_SecondRunUploadsNothing(t *testing.T) {
	fs := newFakeServer(t, 8)
	client := newTestClient(t, fs)

	srcs := []pubtypes.ArtifactSource{
		&bytesSource{name: "app.bin", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: []byte("stable artifact content")},
	}

	first, err := client.Publish(context.Background(), srcs)
	require.NoError(t, err)
	assert.Positive(t, first.ChunksUploaded)

	second, err := client.Publish(context.Background(), srcs)
	require.NoError(t, err)
	assert.Zero(t, second.ChunksUploaded)
	assert.Equal(t, 1, second.Rounds)
	assert.False(t, second.Artifacts[0].Uploaded)
}

func TestPublish_DuplicateSourcesCollapse(t *testing.T) {
	fs := newFakeServer(t, 8)
	client := newTestClient(t, fs)

	content := []byte("identical content")
	srcs := []pubtypes.ArtifactSource{
		&bytesSource{name: "one.bin", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: content},
		&bytesSource{name: "two.bin", debugID: "8d8e7c60-cd6f-492d-bc33-0b83111e7106", content: content},
	}

	result, err := client.Publish(context.Background(), srcs)
	require.NoError(t, err)
	assert.Len(t, result.Artifacts, 1)
}

func TestPublish_InvalidInputs(t *testing.T) {
	fs := newFakeServer(t, 8)
	client := newTestClient(t, fs)

	tests := []struct {
		name string
		srcs []pubtypes.ArtifactSource
	}{
		{name: "no sources", srcs: nil},
		{
			name: "empty artifact name",
			srcs: []pubtypes.ArtifactSource{
				&bytesSource{name: "", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: []byte("x")},
			},
		},
		{
			name: "bad debug id",
			srcs: []pubtypes.ArtifactSource{
				&bytesSource{name: "app.bin", debugID: "not-a-uuid", content: []byte("x")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Publish(context.Background(), tt.srcs)
			require.Error(t, err)
			assert.ErrorIs(t, err, puberrors.ErrInvalidInput)
		})
	}
}

func TestPublish_ProjectRequiredForDebugFiles(t *testing.T) {
	fs := newFakeServer(t, 8)
	client, err := New(fs.server.URL, "acme", pubtypes.StaticToken("test-token"),
		WithHTTPClient(fs.server.Client()))
	require.NoError(t, err)

	_, err = client.Publish(context.Background(), []pubtypes.ArtifactSource{
		&bytesSource{name: "app.bin", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: []byte("x")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, puberrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "project")
}

func TestPublish_PartialFailure(t *testing.T) {
	fs := newFakeServer(t, 8)

	badContent := []byte("artifact the server rejects")
	badSum := sha1.Sum(badContent)
	badChecksum := hex.EncodeToString(badSum[:])

	// Replace the assemble handler: the bad artifact is rejected outright,
	// everything else reports ok.
	orig := fs.server.Config.Handler
	fs.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/projects/acme/spacetools/files/difs/assemble/" {
			orig.ServeHTTP(w, r)
			return
		}
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := make(map[string]any, len(req))
		for checksum := range req {
			if checksum == badChecksum {
				resp[checksum] = map[string]any{"state": "error", "missingChunks": []string{}, "detail": "corrupt artifact"}
			} else {
				resp[checksum] = map[string]any{"state": "ok", "missingChunks": []string{}}
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	client := newTestClient(t, fs)
	result, err := client.Publish(context.Background(), []pubtypes.ArtifactSource{
		&bytesSource{name: "good.bin", debugID: "8d8e7c60-cd6f-492d-bc33-0b83111e7106", content: []byte("artifact the server keeps")},
		&bytesSource{name: "bad.bin", debugID: "c02651ae-cd6f-492d-bc33-0b83111e7106", content: badContent},
	})

	require.Error(t, err)
	assert.True(t, puberrors.IsPartialFailure(err))
	require.NotNil(t, result)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, pubtypes.StatusComplete, result.Artifacts[0].Status)

	require.Len(t, result.Failed(), 1)
	assert.Equal(t, "bad.bin", result.Failed()[0].Name)
	assert.ErrorIs(t, result.Failed()[0].Err, puberrors.ErrAssembleRejected)
	assert.Contains(t, result.Failed()[0].Err.Error(), "corrupt artifact")
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		org   string
		creds pubtypes.CredentialProvider
	}{
		{name: "missing url", url: "", org: "acme", creds: pubtypes.StaticToken("t")},
		{name: "missing org", url: "https://example.invalid", org: "", creds: pubtypes.StaticToken("t")},
		{name: "missing credentials", url: "https://example.invalid", org: "acme", creds: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url, tt.org, tt.creds)
			require.Error(t, err)
			assert.ErrorIs(t, err, puberrors.ErrInvalidInput)
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client, err := New("https://example.invalid/api/0///", "acme", pubtypes.StaticToken("t"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/api/0", client.cfg.BaseURL)
}
