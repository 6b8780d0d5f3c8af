// Package pubtypes provides shared type definitions for the chunkpub module.
package pubtypes

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HashAlgorithm identifies the content hash algorithm negotiated with the
// server. Chunk hashes and artifact checksums are hex digests under this
// algorithm.
type HashAlgorithm string

// Hash algorithms the client can compute.
const (
	// HashSHA1 is the default algorithm advertised by assembly servers.
	HashSHA1 HashAlgorithm = "sha1"

	// HashBLAKE3 is an optional faster algorithm some servers accept.
	HashBLAKE3 HashAlgorithm = "blake3"
)

// Feature names an assembly protocol variant the server accepts.
// The accepted-feature set is fixed at capability negotiation time and
// determines which assemble endpoint the run uses.
type Feature string

// Assembly feature variants understood by this client.
const (
	// FeatureDebugFiles is the per-project debug file assemble variant.
	FeatureDebugFiles Feature = "debug_files"

	// FeatureReleaseFiles is the legacy per-release assemble variant.
	FeatureReleaseFiles Feature = "release_files"

	// FeatureArtifactBundles is the organization-wide bundle assemble variant.
	FeatureArtifactBundles Feature = "artifact_bundles"

	// FeatureArtifactBundlesV2 is the second revision of the bundle variant.
	FeatureArtifactBundlesV2 Feature = "artifact_bundles_v2"

	// FeatureSources marks servers that accept source archives alongside
	// debug files.
	FeatureSources Feature = "sources"
)

// FeatureSet is the set of assembly variants advertised by the server.
type FeatureSet map[Feature]struct{}

// NewFeatureSet builds a FeatureSet from the raw accept list of a
// capabilities response. Unknown names are kept; callers branch on
// membership of the variants they understand.
func NewFeatureSet(names []string) FeatureSet {
	set := make(FeatureSet, len(names))
	for _, name := range names {
		set[Feature(name)] = struct{}{}
	}
	return set
}

// Has reports whether the server accepts the given variant.
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// ServerCapabilities holds the upload limits discovered from the server.
// It is fetched once per run and never mutated afterwards.
type ServerCapabilities struct {
	// UploadURL is the absolute URL chunk batches are POSTed to.
	UploadURL string

	// ChunkSize is the fixed chunk length in bytes (final chunk may be
	// shorter).
	ChunkSize int64

	// MaxChunksPerRequest bounds the number of chunks in one upload batch.
	MaxChunksPerRequest int

	// MaxRequestSize bounds the total chunk bytes in one upload batch.
	MaxRequestSize int64

	// Concurrency is the maximum number of simultaneous upload requests
	// the server wants to see.
	Concurrency int

	// Hash is the content hash algorithm the server requires.
	Hash HashAlgorithm

	// Accept is the set of assembly variants the server supports.
	Accept FeatureSet

	// Compression lists the part encodings the server accepts for chunk
	// uploads (for example "gzip").
	Compression []string
}

// AcceptsGzip reports whether chunk parts may be gzip-compressed.
func (c *ServerCapabilities) AcceptsGzip() bool {
	for _, enc := range c.Compression {
		if enc == "gzip" {
			return true
		}
	}
	return false
}

// Artifact is a single file to publish: its identifying metadata, its full
// content, and the content-addressed chunks derived from it. Artifacts are
// immutable once chunked.
type Artifact struct {
	// Name is the display name the server stores the artifact under.
	Name string

	// DebugID is the unique identifier extracted from the artifact.
	DebugID string

	// Checksum is the hex digest of the whole content; it is the key the
	// artifact is tracked under in assemble requests.
	Checksum string

	// Chunks are the content-addressed slices of the artifact, in offset
	// order. The order defines server-side reconstruction.
	Chunks []Chunk

	// Size is the total content length in bytes.
	Size int64

	// ContentType is an optional sniffed MIME type, used for reporting.
	ContentType string

	// Content is the raw artifact bytes. Chunks reference slices of this
	// buffer and never copy it.
	Content []byte
}

// Chunk is a fixed-size, content-hashed slice of an artifact. It carries no
// copy of the data; Bytes resolves back into the owning artifact's buffer.
type Chunk struct {
	// Hash is the hex content digest and the chunk's sole wire identity.
	Hash string

	// Offset is the chunk's byte offset within the artifact.
	Offset int64

	// Size is the chunk length in bytes.
	Size int64

	// Owner is the artifact the chunk was cut from.
	Owner *Artifact
}

// Bytes returns the chunk's content as a slice of the owning artifact's
// buffer.
func (c *Chunk) Bytes() []byte {
	return c.Owner.Content[c.Offset : c.Offset+c.Size]
}

// ArtifactSource supplies the identifying metadata and byte content of one
// artifact. Implementations live outside the core engine; see the source
// package for a file-backed one.
type ArtifactSource interface {
	// Name returns the artifact's display name.
	Name() string

	// DebugID returns the artifact's unique identifier.
	DebugID() string

	// Content returns the artifact's full byte content.
	Content() ([]byte, error)
}

// CredentialProvider supplies the Authorization header value for API
// requests.
type CredentialProvider interface {
	// AuthHeader returns the full Authorization header value.
	AuthHeader(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider for a fixed bearer token.
type StaticToken string

// AuthHeader implements CredentialProvider.
func (t StaticToken) AuthHeader(context.Context) (string, error) {
	return "Bearer " + string(t), nil
}

// ArtifactStatus is the terminal outcome of one artifact.
type ArtifactStatus string

// Terminal artifact outcomes.
const (
	// StatusComplete means the server holds the fully assembled artifact.
	StatusComplete ArtifactStatus = "complete"

	// StatusFailed means the artifact did not reach an assembled state.
	StatusFailed ArtifactStatus = "failed"

	// StatusCancelled means the run was interrupted before the artifact
	// reached a terminal state.
	StatusCancelled ArtifactStatus = "cancelled"
)

// ArtifactResult reports the outcome of publishing one artifact.
type ArtifactResult struct {
	// Name is the artifact's display name.
	Name string

	// DebugID is the artifact's unique identifier.
	DebugID string

	// Checksum is the whole-content digest the artifact was tracked under.
	Checksum string

	// ContentType is the sniffed MIME type, when known.
	ContentType string

	// Status is the terminal outcome.
	Status ArtifactStatus

	// Uploaded reports whether any chunk bytes were transmitted for this
	// artifact, as opposed to the server already holding everything.
	Uploaded bool

	// Err carries the cause for a failed or cancelled artifact.
	Err error
}

// PublishResult aggregates the outcome of one publish run.
type PublishResult struct {
	// Artifacts holds one entry per input artifact, in input order.
	Artifacts []ArtifactResult

	// ChunksUploaded is the number of chunks transmitted across the run.
	ChunksUploaded int

	// BytesUploaded is the raw (pre-compression) chunk bytes transmitted.
	BytesUploaded int64

	// Rounds is the number of assemble rounds the run used.
	Rounds int

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Failed returns the artifacts that did not complete.
func (r *PublishResult) Failed() []ArtifactResult {
	var failed []ArtifactResult
	for _, a := range r.Artifacts {
		if a.Status != StatusComplete {
			failed = append(failed, a)
		}
	}
	return failed
}

// ProgressTracker receives updates as chunk batches are acknowledged.
// Implementations render progress; the engine only reports numbers.
type ProgressTracker interface {
	// Update is called with cumulative transferred and total bytes.
	Update(transferred, total int64)

	// Complete is called once when the transfer finishes.
	Complete()
}

// ClientConfig holds client-level configuration populated by functional
// options.
type ClientConfig struct {
	// BaseURL is the API root, for example "https://example.invalid/api/0".
	BaseURL string

	// Organization is the organization slug used in endpoint paths.
	Organization string

	// Project is the project slug used in endpoint paths.
	Project string

	// Credentials supplies the Authorization header.
	Credentials CredentialProvider

	// HTTPClient overrides the transport used for API calls.
	HTTPClient *http.Client

	// Timeout bounds individual HTTP requests. Zero means no timeout.
	Timeout time.Duration

	// UserAgent overrides the User-Agent header.
	UserAgent string

	// MaxRounds bounds the number of assemble rounds per run.
	MaxRounds int

	// MaxAttempts bounds retries per HTTP call (assemble and chunk batch).
	MaxAttempts int

	// RetryInitialInterval is the first backoff delay between retries.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff delay between retries.
	RetryMaxInterval time.Duration

	// Logger receives structured engine events. Defaults to a no-op.
	Logger *zap.Logger
}

// Option configures the client.
type Option func(*ClientConfig)

// PublishConfig holds per-call configuration populated by publish options.
type PublishConfig struct {
	// ProgressTracker receives transfer updates for this call.
	ProgressTracker ProgressTracker
}

// PublishOption configures a single Publish call.
type PublishOption func(*PublishConfig)
