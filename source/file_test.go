// Package source provides unit tests for file-backed artifact sources.
package source

import (
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symkit/chunkpub/internal/validation"
)

func TestFileSource(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("/builds/app.bin", []byte("artifact bytes"), 0o644))

	src := NewFileSource(fsys, "/builds/app.bin", "", "")

	assert.Equal(t, "app.bin", src.Name())

	content, err := src.Content()
	require.NoError(t, err)
	assert.Equal(t, "artifact bytes", string(content))

	// Derived identifiers are valid debug IDs and stable across calls.
	require.NoError(t, validation.ValidateDebugID(src.DebugID()))
	again := NewFileSource(fsys, "/builds/app.bin", "", "")
	assert.Equal(t, src.DebugID(), again.DebugID())
}

func TestFileSource_ExplicitMetadata(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("/a", []byte("x"), 0o644))

	src := NewFileSource(fsys, "/a", "renamed.so", "c02651ae-cd6f-492d-bc33-0b83111e7106")
	assert.Equal(t, "renamed.so", src.Name())
	assert.Equal(t, "c02651ae-cd6f-492d-bc33-0b83111e7106", src.DebugID())
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(billy.NewInMemoryFS(), "/missing", "", "")
	_, err := src.Content()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing")
}

func TestFileSource_DistinctNamesDistinctIDs(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("/a", []byte("x"), 0o644))
	require.NoError(t, fsys.WriteFile("/b", []byte("x"), 0o644))

	a := NewFileSource(fsys, "/a", "", "")
	b := NewFileSource(fsys, "/b", "", "")
	assert.NotEqual(t, a.DebugID(), b.DebugID())
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectContentType([]byte{0x00, 0x01, 0x02}))
	assert.Contains(t, DetectContentType([]byte("{\"json\": true}")), "json")
}

func TestScanDir(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("/dist/app.so", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("/dist/sub/lib.so", []byte("b"), 0o644))
	require.NoError(t, fsys.WriteFile("/dist/.hidden", []byte("c"), 0o644))
	require.NoError(t, fsys.WriteFile("/dist/.git/config", []byte("d"), 0o644))
	require.NoError(t, fsys.WriteFile("/elsewhere/other.so", []byte("e"), 0o644))

	sources, err := ScanDir(fsys, "/dist")
	require.NoError(t, err)

	var names []string
	for _, src := range sources {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{"app.so", "sub/lib.so"}, names)
}

func TestScanDir_Empty(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.MkdirAll("/empty", 0o755))

	sources, err := ScanDir(fsys, "/empty")
	require.NoError(t, err)
	assert.Empty(t, sources)
}
