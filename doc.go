// Package chunkpub publishes large artifacts to a content-addressable
// assembly service. Artifacts are split into fixed-size hashed chunks, the
// server is asked which chunks it is missing, and only those are transmitted,
// in bounded-concurrency multipart batches, until the server reports every
// artifact assembled.
//
// # Basic Usage
//
// Create a client with your API root, organization, and credentials:
//
//	client, err := chunkpub.New(
//		"https://example.invalid/api/0",
//		"acme",
//		pubtypes.StaticToken("token"),
//		chunkpub.WithProject("spacetools"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Publish one or more artifact sources:
//
//	srcs := []pubtypes.ArtifactSource{
//		source.NewFileSource(nil, "/builds/app.dSYM", "", ""),
//	}
//	result, err := client.Publish(ctx, srcs)
//
// The result carries one entry per artifact with its terminal status. A
// partially failed run returns both the result and an error matching
// errors.ErrPartialFailure.
//
// # Capability Negotiation
//
// Chunk size, hash algorithm, batch limits, and upload concurrency are not
// configured locally; they are fetched from the server at the start of every
// Publish call and obeyed for the whole run. Servers advertising only hash
// algorithms or assembly variants this client does not implement fail fast
// with errors.ErrUnsupportedHash or errors.ErrUnsupportedVariant.
//
// # Progress
//
// Attach a progress tracker to observe transfer:
//
//	result, err := client.Publish(ctx, srcs,
//		chunkpub.WithProgressTracker(tracker))
//
// The tracker receives cumulative byte counts as chunk batches are
// acknowledged.
package chunkpub
