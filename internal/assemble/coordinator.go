// Package assemble drives artifacts through the assembly protocol: rounds of
// assemble requests, chunk uploads for whatever the server reports missing,
// and per-artifact state tracking until every artifact is terminal.
//
// Assemble rounds are strictly serialized; only chunk transmission within a
// round is concurrent. All artifact state lives here and is only updated
// between rounds, after a round's outcome is fully known.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/internal/api"
	"github.com/symkit/chunkpub/internal/negotiate"
	"github.com/symkit/chunkpub/internal/uploader"
	"github.com/symkit/chunkpub/pubtypes"
)

// State is the lifecycle position of one artifact within a run.
type State int

// Artifact states. Complete and Failed are terminal; a terminal artifact is
// never resubmitted.
const (
	// StatePending: chunked, not yet sent to the service.
	StatePending State = iota

	// StateSubmitted: part of an assemble request in flight or about to be.
	StateSubmitted

	// StateAwaitingChunks: the server reported missing chunks that must be
	// uploaded before resubmission.
	StateAwaitingChunks

	// StateComplete: the server holds the fully assembled artifact.
	StateComplete

	// StateFailed: the server rejected the artifact, or a budget ran out.
	StateFailed
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingChunks:
		return "awaiting_chunks"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// tracked is the coordinator's per-artifact slot.
type tracked struct {
	art       *pubtypes.Artifact
	state     State
	err       error
	cancelled bool
	uploaded  bool
}

// terminal reports whether the artifact needs no further rounds.
func (t *tracked) terminal() bool {
	return t.state == StateComplete || t.state == StateFailed
}

// DefaultMaxRounds bounds assemble rounds per run. Every productive round
// either completes an artifact or uploads its missing chunks, so a healthy
// run settles in two or three rounds; six leaves room for servers that
// assemble lazily while still guaranteeing termination.
const DefaultMaxRounds = 6

// Coordinator owns the round loop for one run.
type Coordinator struct {
	client    api.API
	sess      *negotiate.Session
	up        *uploader.Uploader
	log       *zap.Logger
	maxRounds int
}

// New creates a Coordinator for one publish run.
func New(client api.API, sess *negotiate.Session, up *uploader.Uploader, maxRounds int, log *zap.Logger) *Coordinator {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		client:    client,
		sess:      sess,
		up:        up,
		log:       log,
		maxRounds: maxRounds,
	}
}

// Run drives every artifact to a terminal state and reports the per-artifact
// outcome. The returned error is nil even when artifacts failed; callers
// inspect the result. Run itself only errors on programmer mistakes (no
// artifacts).
func (c *Coordinator) Run(ctx context.Context, artifacts []*pubtypes.Artifact) (*pubtypes.PublishResult, error) {
	if len(artifacts) == 0 {
		return nil, puberrors.NewError("assemble", puberrors.ErrInvalidInput).
			WithMessage("no artifacts to publish")
	}

	start := time.Now()
	slots := make([]*tracked, len(artifacts))
	chunkIndex := make(map[string]*pubtypes.Chunk)
	for i, art := range artifacts {
		slots[i] = &tracked{art: art, state: StatePending}
		for j := range art.Chunks {
			chunk := &art.Chunks[j]
			// First occurrence wins: identical bytes are uploaded once
			// regardless of how many artifacts contain them.
			if _, ok := chunkIndex[chunk.Hash]; !ok {
				chunkIndex[chunk.Hash] = chunk
			}
		}
	}

	result := &pubtypes.PublishResult{}
	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			c.cancelRemaining(slots, err)
			break
		}

		active := c.collectActive(slots)
		if len(active) == 0 {
			break
		}
		if rounds >= c.maxRounds {
			for _, t := range active {
				t.state = StateFailed
				t.err = puberrors.NewError("assemble", puberrors.ErrRoundBudget).
					WithChecksum(t.art.Checksum).
					WithMessage(fmt.Sprintf("artifact not assembled after %d rounds", c.maxRounds))
			}
			break
		}
		rounds++

		missing, err := c.round(ctx, active, rounds)
		if err != nil {
			if cause := cancellation(ctx, err); cause != nil {
				c.cancelRemaining(slots, cause)
				break
			}
			// A failed assemble call fails every artifact in the round;
			// already-terminal artifacts are untouched.
			for _, t := range active {
				t.state = StateFailed
				t.err = err
			}
			break
		}

		if len(missing) == 0 {
			continue
		}

		chunks := make([]*pubtypes.Chunk, 0, len(missing))
		for _, hash := range missing {
			chunk, ok := chunkIndex[hash]
			if !ok {
				// The server asked for a chunk no artifact contains;
				// resubmitting cannot resolve it.
				c.failAwaiting(slots, puberrors.NewError("assemble", puberrors.ErrAssembleRejected).
					WithChunk(hash).
					WithMessage("server requested a chunk not present in any artifact"))
				chunks = nil
				break
			}
			chunks = append(chunks, chunk)
		}
		if chunks == nil {
			break
		}

		upResult, err := c.up.Upload(ctx, chunks)
		if err != nil {
			if cause := cancellation(ctx, err); cause != nil {
				c.cancelRemaining(slots, cause)
				break
			}
			// One exhausted batch fails the whole round: every artifact
			// still waiting on chunks goes terminal with the cause.
			c.failAwaiting(slots, err)
			break
		}
		result.ChunksUploaded += upResult.Chunks
		result.BytesUploaded += upResult.Bytes

		for _, t := range slots {
			if t.state == StateAwaitingChunks {
				t.state = StateSubmitted
				t.uploaded = true
			}
		}
	}

	result.Rounds = rounds
	result.Duration = time.Since(start)
	for _, t := range slots {
		result.Artifacts = append(result.Artifacts, c.resolve(t))
	}
	return result, nil
}

// collectActive returns the artifacts that still need a round, preserving
// input order so request bodies are deterministic.
func (c *Coordinator) collectActive(slots []*tracked) []*tracked {
	var active []*tracked
	for _, t := range slots {
		if !t.terminal() {
			active = append(active, t)
		}
	}
	return active
}

// round submits one assemble request for the active artifacts and applies
// the response. It returns the union of missing chunk hashes, deduplicated
// across artifacts in discovery order.
func (c *Coordinator) round(ctx context.Context, active []*tracked, n int) ([]string, error) {
	req := make(map[string]api.AssembleRequestEntry, len(active))
	for _, t := range active {
		t.state = StateSubmitted
		hashes := make([]string, len(t.art.Chunks))
		for i, chunk := range t.art.Chunks {
			hashes[i] = chunk.Hash
		}
		req[t.art.Checksum] = api.AssembleRequestEntry{
			Name:    t.art.Name,
			DebugID: t.art.DebugID,
			Chunks:  hashes,
		}
	}

	c.log.Debug("assemble round",
		zap.Int("round", n),
		zap.Int("artifacts", len(active)),
		zap.String("endpoint", c.sess.AssemblePath))

	resp, err := c.client.Assemble(ctx, c.sess.AssemblePath, req)
	if err != nil {
		return nil, err
	}

	var missing []string
	seen := make(map[string]struct{})
	for _, t := range active {
		entry, ok := resp[t.art.Checksum]
		if !ok {
			t.state = StateFailed
			t.err = puberrors.NewError("assemble", puberrors.ErrAssembleRejected).
				WithChecksum(t.art.Checksum).
				WithMessage("server response omitted the artifact")
			continue
		}

		switch entry.State {
		case api.StateOK:
			t.state = StateComplete
		case api.StateCreated:
			if len(entry.MissingChunks) == 0 {
				t.state = StateComplete
				break
			}
			t.state = StateAwaitingChunks
		case api.StateNotFound:
			if len(entry.MissingChunks) == 0 {
				// Everything is uploaded but assembly has not finished;
				// stay submitted and poll next round.
				break
			}
			t.state = StateAwaitingChunks
		case api.StateError:
			t.state = StateFailed
			detail := entry.Detail
			if detail == "" {
				detail = "no detail provided"
			}
			t.err = puberrors.NewError("assemble", puberrors.ErrAssembleRejected).
				WithChecksum(t.art.Checksum).
				WithMessage(detail)
		default:
			t.state = StateFailed
			t.err = puberrors.NewError("assemble", puberrors.ErrAssembleRejected).
				WithChecksum(t.art.Checksum).
				WithMessage(fmt.Sprintf("unknown assembly state %q", entry.State))
		}

		if t.state == StateAwaitingChunks {
			for _, hash := range entry.MissingChunks {
				if _, ok := seen[hash]; ok {
					continue
				}
				seen[hash] = struct{}{}
				missing = append(missing, hash)
			}
		}

		c.log.Debug("artifact state",
			zap.String("name", t.art.Name),
			zap.String("checksum", t.art.Checksum),
			zap.Stringer("state", t.state),
			zap.Int("missingChunks", len(entry.MissingChunks)))
	}
	return missing, nil
}

// cancellation reports the interrupt behind a mid-round failure, or nil when
// the failure is the server's. Interrupted artifacts are reported cancelled,
// not failed-by-server.
func cancellation(ctx context.Context, err error) error {
	if cause := ctx.Err(); cause != nil {
		return cause
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// failAwaiting marks every artifact still waiting on chunks as failed with
// the given cause.
func (c *Coordinator) failAwaiting(slots []*tracked, cause error) {
	for _, t := range slots {
		if t.state == StateAwaitingChunks || t.state == StateSubmitted {
			t.state = StateFailed
			t.err = cause
		}
	}
}

// cancelRemaining marks every non-terminal artifact cancelled rather than
// failed-by-server.
func (c *Coordinator) cancelRemaining(slots []*tracked, cause error) {
	for _, t := range slots {
		if !t.terminal() {
			t.state = StateFailed
			t.cancelled = true
			t.err = puberrors.NewError("assemble", puberrors.ErrCancelled).
				WithChecksum(t.art.Checksum).
				WithMessage(cause.Error())
		}
	}
}

// resolve converts a slot into its public result.
func (c *Coordinator) resolve(t *tracked) pubtypes.ArtifactResult {
	res := pubtypes.ArtifactResult{
		Name:        t.art.Name,
		DebugID:     t.art.DebugID,
		Checksum:    t.art.Checksum,
		ContentType: t.art.ContentType,
		Uploaded:    t.uploaded,
		Err:         t.err,
	}
	switch {
	case t.state == StateComplete:
		res.Status = pubtypes.StatusComplete
	case t.cancelled:
		res.Status = pubtypes.StatusCancelled
	default:
		res.Status = pubtypes.StatusFailed
	}
	return res
}
