// Package sqlite provides the SQLite-backed run and version catalog.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The catalog indexes what the version
// store already holds on disk so that history queries do not walk every
// version directory:
//
//   - versions: one row per published corpus version
//   - runs: one row per completed or aborted run
//   - run_sources: per-source counters and summaries of each run
//
// # Schema
//
// The schema is managed through numbered migrations embedded from the
// migrations/ directory. Each .up.sql file is applied once, inside a
// transaction that also records its version in schema_migrations.
//
// # Data Location
//
// The database path comes from the catalog.path setting. An empty path
// disables the catalog.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
