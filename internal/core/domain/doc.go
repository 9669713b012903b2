// Package domain defines the entities of the corpus pipeline.
//
//   - RawFile: a file a connector wrote under <raw_root>/<source>/
//   - CorpusVersion: an immutable, hash-identified snapshot of the raw tree
//   - NormalizedRecord: canonical text and metadata extracted from one raw file
//   - Chunk: a citation-addressable slice of a record's text
//   - RunManifest: the outcome of one pipeline invocation
//   - Event: what the orchestrator reports while it runs
//
// Citations reference a chunk by version_id and chunk_id; both are derived
// from content, so re-running the pipeline on the same corpus yields the
// same references.
//
// Domain imports the standard library only. Every other package depends on
// it, never the reverse.
package domain
