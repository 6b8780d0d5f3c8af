// Package source provides artifact sources backed by the local filesystem.
// Sources supply name, identifier, and content; the engine does the rest.
package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	puberrors "github.com/symkit/chunkpub/errors"
)

// namespaceArtifact salts derived identifiers so they cannot collide with
// identifiers derived by other tools from the same paths.
var namespaceArtifact = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chunkpub/artifact"))

// FileSource is a pubtypes.ArtifactSource backed by a single file.
type FileSource struct {
	fsys    fs.Filesystem
	path    string
	name    string
	debugID string
}

// NewFileSource creates a source for one file. name defaults to the file's
// base name; debugID, when empty, is derived deterministically from the name
// so repeated runs address the same artifact.
func NewFileSource(fsys fs.Filesystem, path, name, debugID string) *FileSource {
	if fsys == nil {
		fsys = billy.NewOSFS("/")
	}
	if name == "" {
		name = filepath.Base(path)
	}
	if debugID == "" {
		debugID = uuid.NewSHA1(namespaceArtifact, []byte(name)).String()
	}
	return &FileSource{fsys: fsys, path: path, name: name, debugID: debugID}
}

// Name implements pubtypes.ArtifactSource.
func (s *FileSource) Name() string { return s.name }

// DebugID implements pubtypes.ArtifactSource.
func (s *FileSource) DebugID() string { return s.debugID }

// Content implements pubtypes.ArtifactSource.
func (s *FileSource) Content() ([]byte, error) {
	data, err := s.fsys.ReadFile(s.path)
	if err != nil {
		return nil, puberrors.NewError("readSource", err).WithMessage(s.path)
	}
	return data, nil
}

// DetectContentType sniffs the MIME type of content for reporting. It never
// fails; unrecognized content is application/octet-stream.
func DetectContentType(content []byte) string {
	return mimetype.Detect(content).String()
}

// ScanDir walks root and returns a file source per regular file, named by
// its path relative to root with forward slashes. Hidden files and
// directories (dot-prefixed) are skipped. Results are sorted by name so
// discovery order is stable across runs.
func ScanDir(fsys fs.Filesystem, root string) ([]*FileSource, error) {
	if fsys == nil {
		fsys = billy.NewOSFS("/")
	}

	var sources []*FileSource
	err := fsys.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		sources = append(sources, NewFileSource(fsys, path, name, ""))
		return nil
	})
	if err != nil {
		return nil, puberrors.NewError("scanDir", err).WithMessage(root)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].name < sources[j].name })
	return sources, nil
}
