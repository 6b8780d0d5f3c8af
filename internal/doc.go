// Package internal contains private implementation details for the chunkpub
// module. These packages are not intended for external use and may change
// without notice.
//
// The internal packages are organized as follows:
//   - api: HTTP wire protocol (capabilities, assemble, chunk upload)
//   - negotiate: capability validation and variant selection
//   - chunker: content splitting and hashing
//   - assemble: per-artifact state machine and round loop
//   - uploader: batch packing and concurrent chunk transmission
//   - multipart: multipart/form-data batch encoding
//   - validation: input validation logic
//   - pool: memory management optimizations
//   - testutil: shared test doubles and fixture builders
package internal
