package uploader

import (
	"context"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/internal/api"
	"github.com/symkit/chunkpub/internal/multipart"
	"github.com/symkit/chunkpub/internal/pool"
	"github.com/symkit/chunkpub/pubtypes"
)

// Uploader transmits chunk batches under the negotiated limits.
type Uploader struct {
	client api.API
	caps   pubtypes.ServerCapabilities
	log    *zap.Logger

	// tracker, when set, is updated once per acknowledged batch.
	tracker pubtypes.ProgressTracker
}

// New creates an Uploader bound to the negotiated capabilities.
func New(client api.API, caps pubtypes.ServerCapabilities, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{client: client, caps: caps, log: log}
}

// WithProgressTracker sets the progress tracker for the uploader.
func (u *Uploader) WithProgressTracker(tracker pubtypes.ProgressTracker) *Uploader {
	u.tracker = tracker
	return u
}

// Result reports what one upload round transmitted.
type Result struct {
	// Chunks is the number of chunks acknowledged.
	Chunks int

	// Bytes is the raw chunk bytes acknowledged (pre-compression).
	Bytes int64
}

// Upload packs the given chunks into batches and transmits them over a
// worker pool bounded by the negotiated concurrency. It returns success only
// when every batch was acknowledged; otherwise the error names every chunk
// hash left unresolved.
func (u *Uploader) Upload(ctx context.Context, chunks []*pubtypes.Chunk) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	batches, err := Pack(chunks, u.caps.MaxChunksPerRequest, u.caps.MaxRequestSize)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, b := range batches {
		total += b.Bytes
	}
	u.log.Debug("dispatching chunk batches",
		zap.Int("chunks", len(chunks)),
		zap.Int("batches", len(batches)),
		zap.Int64("bytes", total),
		zap.Int("concurrency", u.caps.Concurrency))

	workers, err := ants.NewPool(u.caps.Concurrency)
	if err != nil {
		return nil, puberrors.NewError("upload", err)
	}
	defer workers.Release()

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transferred int64
		done        int
		unresolved  []string
		firstErr    error
	)

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		submitErr := workers.Submit(func() {
			defer wg.Done()

			// Once a batch has failed, or the run is cancelled, stop
			// spending the retry budget on the rest.
			mu.Lock()
			abort := firstErr != nil
			mu.Unlock()
			if abort || ctx.Err() != nil {
				mu.Lock()
				unresolved = append(unresolved, batch.hashes()...)
				mu.Unlock()
				return
			}

			err := u.send(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				unresolved = append(unresolved, batch.hashes()...)
				return
			}
			done += len(batch.Chunks)
			transferred += batch.Bytes
			if u.tracker != nil {
				u.tracker.Update(transferred, total)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			unresolved = append(unresolved, batch.hashes()...)
			mu.Unlock()
		}
	}
	wg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil && firstErr == nil {
		firstErr = ctxErr
	}
	if firstErr != nil {
		sort.Strings(unresolved)
		return nil, &puberrors.ChunkUploadError{Unresolved: unresolved, Err: firstErr}
	}
	if u.tracker != nil {
		u.tracker.Complete()
	}
	return &Result{Chunks: done, Bytes: transferred}, nil
}

// send encodes and transmits one batch. Retry with backoff happens in the
// transport; by the time send returns an error the batch's budget is spent.
func (u *Uploader) send(ctx context.Context, batch *Batch) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	contentType, err := multipart.Encode(buf, batch.Chunks, u.caps.AcceptsGzip())
	if err != nil {
		return err
	}

	if err := u.client.UploadChunks(ctx, u.caps.UploadURL, contentType, buf.Bytes()); err != nil {
		u.log.Warn("chunk batch failed",
			zap.Int("chunks", len(batch.Chunks)),
			zap.Int64("bytes", batch.Bytes),
			zap.Error(err))
		return err
	}

	u.log.Debug("chunk batch acknowledged",
		zap.Int("chunks", len(batch.Chunks)),
		zap.Int64("bytes", batch.Bytes))
	return nil
}
