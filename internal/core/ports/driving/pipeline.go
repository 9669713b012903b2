package driving

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Pipeline runs the versioning and normalisation stages over the raw tree.
type Pipeline interface {
	// Run snapshots the raw tree, publishes the version and normalises
	// every selected source. The returned manifest is never nil once the
	// run has started; the error is non-nil when the run aborted.
	Run(ctx context.Context, opts RunOptions) (*domain.RunManifest, error)

	// Snapshot runs the versioning stage only. The bool reports whether an
	// existing version was reused.
	Snapshot(ctx context.Context) (*domain.CorpusVersion, bool, error)

	// State returns the state of the current or last run.
	State() domain.RunState
}

// RunOptions narrows a run.
type RunOptions struct {
	// Sources restricts normalisation to these sources. Empty means all.
	Sources []string

	// RetryFailed restricts normalisation to the sources that failed,
	// were partial or were aborted in the version's latest run. Ignored
	// when the version has no previous run.
	RetryFailed bool

	// Force lets a run rewrite the outputs of a reused version whose
	// latest run used other chunk settings. Without it such a run aborts
	// with domain.ErrSettingsChanged.
	Force bool
}

// VersionCatalog answers read-only questions about published versions.
type VersionCatalog interface {
	// Versions lists published versions, oldest first.
	Versions(ctx context.Context) ([]domain.CorpusVersion, error)

	// Get returns a published version.
	Get(ctx context.Context, id string) (*domain.CorpusVersion, error)

	// Verify compares the current raw tree with a published version.
	Verify(ctx context.Context, id string) (*domain.Drift, error)

	// History returns the most recent runs, newest first.
	History(ctx context.Context, limit int) ([]domain.RunManifest, error)
}
