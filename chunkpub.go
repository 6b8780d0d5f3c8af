package chunkpub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/internal/assemble"
	"github.com/symkit/chunkpub/internal/chunker"
	"github.com/symkit/chunkpub/internal/negotiate"
	"github.com/symkit/chunkpub/internal/uploader"
	"github.com/symkit/chunkpub/internal/validation"
	"github.com/symkit/chunkpub/pubtypes"
	"github.com/symkit/chunkpub/source"
)

// Publish uploads the given artifacts and drives them to assembly. It
// negotiates capabilities, chunks every source under the negotiated
// parameters, and runs assemble rounds until each artifact is terminal.
//
// The result always carries one entry per source, in input order. When every
// artifact completes the error is nil; when some fail the result is returned
// together with an error matching errors.ErrPartialFailure, so callers can
// inspect exactly which artifacts need attention.
func (c *Client) Publish(ctx context.Context, sources []pubtypes.ArtifactSource, opts ...pubtypes.PublishOption) (*pubtypes.PublishResult, error) {
	if len(sources) == 0 {
		return nil, puberrors.NewError("publish", puberrors.ErrInvalidInput).
			WithMessage("no artifact sources")
	}

	var pubCfg pubtypes.PublishConfig
	for _, opt := range opts {
		opt(&pubCfg)
	}

	sess, err := negotiate.Negotiate(ctx, c.api, c.cfg.Organization, c.cfg.Project, c.log)
	if err != nil {
		return nil, err
	}
	if sess.Variant == pubtypes.FeatureDebugFiles && c.cfg.Project == "" {
		return nil, puberrors.NewError("publish", puberrors.ErrInvalidInput).
			WithMessage("server selected the debug file variant; a project is required (see WithProject)")
	}

	artifacts, err := c.chunkSources(sources, sess.Caps)
	if err != nil {
		return nil, err
	}

	up := uploader.New(c.api, sess.Caps, c.log)
	if pubCfg.ProgressTracker != nil {
		up.WithProgressTracker(pubCfg.ProgressTracker)
	}

	coord := assemble.New(c.api, sess, up, c.cfg.MaxRounds, c.log)
	result, err := coord.Run(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	c.log.Info("publish finished",
		zap.Int("artifacts", len(result.Artifacts)),
		zap.Int("failed", len(result.Failed())),
		zap.Int("chunksUploaded", result.ChunksUploaded),
		zap.Int64("bytesUploaded", result.BytesUploaded),
		zap.Int("rounds", result.Rounds),
		zap.Duration("duration", result.Duration))

	if failed := result.Failed(); len(failed) > 0 {
		return result, puberrors.NewError("publish", puberrors.ErrPartialFailure).
			WithMessage(fmt.Sprintf("%d of %d artifacts did not complete", len(failed), len(result.Artifacts)))
	}
	return result, nil
}

// chunkSources validates, reads, and chunks every source under the
// negotiated parameters. Duplicate checksums collapse to the first
// occurrence; publishing identical content twice is a no-op, not an error.
func (c *Client) chunkSources(sources []pubtypes.ArtifactSource, caps pubtypes.ServerCapabilities) ([]*pubtypes.Artifact, error) {
	artifacts := make([]*pubtypes.Artifact, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if err := validation.ValidateArtifactName(src.Name()); err != nil {
			return nil, err
		}
		if err := validation.ValidateDebugID(src.DebugID()); err != nil {
			return nil, puberrors.NewError("publish", err).WithMessage(src.Name())
		}

		content, err := src.Content()
		if err != nil {
			return nil, err
		}

		art, err := chunker.Split(src.Name(), src.DebugID(), content, caps.ChunkSize, caps.Hash)
		if err != nil {
			return nil, err
		}
		art.ContentType = source.DetectContentType(content)

		if _, dup := seen[art.Checksum]; dup {
			c.log.Debug("skipping duplicate artifact",
				zap.String("name", art.Name),
				zap.String("checksum", art.Checksum))
			continue
		}
		seen[art.Checksum] = struct{}{}
		artifacts = append(artifacts, art)

		c.log.Debug("chunked artifact",
			zap.String("name", art.Name),
			zap.String("checksum", art.Checksum),
			zap.Int64("size", art.Size),
			zap.Int("chunks", len(art.Chunks)))
	}
	return artifacts, nil
}
