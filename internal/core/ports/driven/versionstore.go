package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// VersionStore persists corpus versions under the processed root.
// Published version directories are immutable apart from their
// normalised outputs and run manifests.
type VersionStore interface {
	// Publish writes the version manifest through a staging directory
	// and renames it into place. Returns domain.ErrVersionConflict when
	// the version id is already taken.
	Publish(ctx context.Context, v *domain.CorpusVersion) error

	// Get loads a published version manifest.
	// Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.CorpusVersion, error)

	// List returns published versions sorted by creation time.
	List(ctx context.Context) ([]domain.CorpusVersion, error)

	// OpenOutput starts the normalised output of one source.
	OpenOutput(ctx context.Context, versionID, source string) (OutputWriter, error)

	// WriteRunManifest persists a completed run manifest.
	WriteRunManifest(ctx context.Context, m *domain.RunManifest) error

	// LatestRunManifest loads the most recent run manifest of a version.
	// Returns domain.ErrNotFound when the version has no runs.
	LatestRunManifest(ctx context.Context, versionID string) (*domain.RunManifest, error)
}

// OutputWriter receives the JSONL lines of one source. Nothing is visible
// at the final path until Commit succeeds.
type OutputWriter interface {
	// Write appends encoded lines.
	Write(p []byte) (int, error)

	// Commit syncs and atomically moves the output into place.
	Commit() error

	// Abort discards the output.
	Abort() error

	// Path returns the final output path.
	Path() string
}
