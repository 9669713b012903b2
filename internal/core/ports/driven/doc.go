// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - RawScanner: Reads the raw tree written by connectors
//   - Extractor: Turns one document format into text parts
//   - ExtractorRegistry: Dispatches documents by format
//   - PostProcessorPipeline: Turns records into chunks
//   - VersionStore: Corpus version, output and run manifest persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EventSink: Receives pipeline events. Without it, events are dropped.
//   - Catalog: Version and run history (SQLite). Without it, history is
//     read from run manifests only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or post-processor package
package driven
