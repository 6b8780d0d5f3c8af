// Package negotiate performs one-time capability discovery against the
// assembly service. It validates the server's advertised limits, checks the
// required hash algorithm is one the client can compute, and selects the
// assembly protocol variant used for the remainder of the run.
package negotiate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/internal/api"
	"github.com/symkit/chunkpub/internal/chunker"
	"github.com/symkit/chunkpub/internal/validation"
	"github.com/symkit/chunkpub/pubtypes"
)

// Session is the negotiated protocol state for one run: the validated
// capabilities plus the assemble endpoint selected by the accepted-feature
// set. It is immutable once built.
type Session struct {
	// Caps are the validated server capabilities.
	Caps pubtypes.ServerCapabilities

	// Variant is the assembly feature variant selected for the run.
	Variant pubtypes.Feature

	// AssemblePath is the endpoint path assemble rounds are POSTed to.
	AssemblePath string
}

// Negotiate fetches and validates capabilities and selects the assembly
// variant. All failures here are fatal for the run; nothing is retried
// beyond the transport's own policy.
func Negotiate(ctx context.Context, client api.API, org, project string, log *zap.Logger) (*Session, error) {
	raw, err := client.Capabilities(ctx)
	if err != nil {
		return nil, puberrors.NewError("negotiate", puberrors.ErrCapability).
			WithMessage(err.Error())
	}

	caps, err := resolve(raw)
	if err != nil {
		return nil, err
	}

	sess := &Session{Caps: *caps}
	switch {
	case caps.Accept.Has(pubtypes.FeatureDebugFiles):
		sess.Variant = pubtypes.FeatureDebugFiles
		sess.AssemblePath = fmt.Sprintf("/projects/%s/%s/files/difs/assemble/", org, project)
	case caps.Accept.Has(pubtypes.FeatureArtifactBundlesV2):
		sess.Variant = pubtypes.FeatureArtifactBundlesV2
		sess.AssemblePath = fmt.Sprintf("/organizations/%s/artifactbundle/assemble/", org)
	case caps.Accept.Has(pubtypes.FeatureArtifactBundles):
		sess.Variant = pubtypes.FeatureArtifactBundles
		sess.AssemblePath = fmt.Sprintf("/organizations/%s/artifactbundle/assemble/", org)
	case caps.Accept.Has(pubtypes.FeatureReleaseFiles):
		// Legacy per-release uploads predate chunked assembly; a server
		// stuck on them cannot assemble from chunks at all.
		return nil, puberrors.NewError("negotiate", puberrors.ErrUnsupportedVariant).
			WithMessage("server only accepts legacy release file uploads")
	default:
		return nil, puberrors.NewError("negotiate", puberrors.ErrUnsupportedVariant).
			WithMessage(fmt.Sprintf("server accepts %v", rawAccept(caps.Accept)))
	}

	log.Debug("negotiated capabilities",
		zap.Int64("chunkSize", caps.ChunkSize),
		zap.Int("chunksPerRequest", caps.MaxChunksPerRequest),
		zap.Int64("maxRequestSize", caps.MaxRequestSize),
		zap.Int("concurrency", caps.Concurrency),
		zap.String("hashAlgorithm", string(caps.Hash)),
		zap.String("variant", string(sess.Variant)),
		zap.Bool("acceptsSources", caps.Accept.Has(pubtypes.FeatureSources)))

	return sess, nil
}

// resolve turns the raw wire response into validated capabilities.
func resolve(raw *api.CapabilitiesResponse) (*pubtypes.ServerCapabilities, error) {
	for field, present := range map[string]bool{
		"url":              raw.URL != nil,
		"chunkSize":        raw.ChunkSize != nil,
		"chunksPerRequest": raw.ChunksPerRequest != nil,
		"maxRequestSize":   raw.MaxRequestSize != nil,
		"concurrency":      raw.Concurrency != nil,
		"hashAlgorithm":    raw.HashAlgorithm != nil,
	} {
		if !present {
			return nil, puberrors.NewError("negotiate", puberrors.ErrMissingField).
				WithMessage(field)
		}
	}

	alg := pubtypes.HashAlgorithm(*raw.HashAlgorithm)
	if !chunker.Supported(alg) {
		return nil, puberrors.NewError("negotiate", puberrors.ErrUnsupportedHash).
			WithMessage(fmt.Sprintf("server requires %q", alg))
	}

	caps := &pubtypes.ServerCapabilities{
		UploadURL:           *raw.URL,
		ChunkSize:           *raw.ChunkSize,
		MaxChunksPerRequest: *raw.ChunksPerRequest,
		MaxRequestSize:      *raw.MaxRequestSize,
		Concurrency:         *raw.Concurrency,
		Hash:                alg,
		Accept:              pubtypes.NewFeatureSet(raw.Accept),
		Compression:         raw.Compression,
	}
	if err := validation.ValidateCapabilities(caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// rawAccept lists a feature set for error messages.
func rawAccept(set pubtypes.FeatureSet) []string {
	names := make([]string, 0, len(set))
	for f := range set {
		names = append(names, string(f))
	}
	return names
}
