// Package driving defines what the CLI may ask of the core: run the
// pipeline, snapshot the raw tree and query published versions.
//
// Implementations live in internal/core/services.
package driving
