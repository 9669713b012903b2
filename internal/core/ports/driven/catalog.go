package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Catalog indexes versions and runs for history queries.
// It is optional: the version store remains the source of truth.
type Catalog interface {
	// RecordVersion inserts a published version. Re-recording is a no-op.
	RecordVersion(ctx context.Context, v *domain.CorpusVersion) error

	// RecordRun inserts a completed run with its per-source rows.
	RecordRun(ctx context.Context, m *domain.RunManifest) error

	// ListRuns returns the most recent runs, newest first.
	// Per-source reports carry counters and summaries but no error lists.
	ListRuns(ctx context.Context, limit int) ([]domain.RunManifest, error)

	// Close releases the database.
	Close() error
}
