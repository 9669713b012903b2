package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
)

// Ensure VersionManager implements the interface.
var _ driving.VersionCatalog = (*VersionManager)(nil)

// versionIDDateLayout is the date part of a version id.
const versionIDDateLayout = "2006-01-02"

// versionIDHashChars is the corpus hash prefix kept in a version id.
const versionIDHashChars = 8

// maxVersionSuffix bounds the collision search for a free version id.
const maxVersionSuffix = 1000

// VersionManager snapshots the raw tree into immutable corpus versions.
// It is the single writer of version publication.
type VersionManager struct {
	scanner driven.RawScanner
	store   driven.VersionStore
	catalog driven.Catalog
	now     func() time.Time
}

// NewVersionManager creates a version manager. The catalog is optional and
// only read by History.
func NewVersionManager(
	scanner driven.RawScanner,
	store driven.VersionStore,
	catalog driven.Catalog,
	now func() time.Time,
) *VersionManager {
	if now == nil {
		now = time.Now
	}
	return &VersionManager{scanner: scanner, store: store, catalog: catalog, now: now}
}

// Compute builds the corpus version of a raw tree snapshot. The result does
// not depend on the order of files.
func Compute(files []domain.RawFile, now time.Time) (*domain.CorpusVersion, error) {
	created := now.UTC()
	v := &domain.CorpusVersion{
		CreatedAt:  created,
		FileHashes: make(map[string]string, len(files)),
		Files:      make([]domain.FileEntry, 0, len(files)),
	}

	digests := make([]contenthash.Digest, 0, len(files))
	sources := make(map[string]bool)
	for _, f := range files {
		key := f.Key()
		if _, dup := v.FileHashes[key]; dup {
			return nil, fmt.Errorf("duplicate raw file %s: %w", key, domain.ErrInvalidInput)
		}
		d, err := contenthash.ParseDigest(f.ByteHash)
		if err != nil {
			return nil, fmt.Errorf("byte hash of %s: %w", key, err)
		}
		digests = append(digests, d)
		v.FileHashes[key] = d.Hex()
		v.Files = append(v.Files, domain.NewFileEntry(f))
		sources[f.Source] = true
	}

	sort.Slice(v.Files, func(i, j int) bool {
		if v.Files[i].Source != v.Files[j].Source {
			return v.Files[i].Source < v.Files[j].Source
		}
		return v.Files[i].RelativePath < v.Files[j].RelativePath
	})
	for s := range sources {
		v.Sources = append(v.Sources, s)
	}
	slices.Sort(v.Sources)

	corpus := contenthash.HashSet(digests)
	v.CorpusHash = corpus.Hex()
	v.ID = created.Format(versionIDDateLayout) + "-" + corpus.Short(versionIDHashChars)
	return v, nil
}

// Snapshot scans the raw tree, computes its version and publishes it.
// The bool reports whether the latest published version was reused.
func (m *VersionManager) Snapshot(ctx context.Context) (*domain.CorpusVersion, bool, error) {
	files, err := m.scanner.Scan(ctx)
	if err != nil {
		return nil, false, &domain.VersioningError{Op: "scan", Err: err}
	}
	if len(files) == 0 {
		return nil, false, &domain.VersioningError{Op: "scan", Err: domain.ErrEmptyCorpus}
	}

	v, err := Compute(files, m.now())
	if err != nil {
		return nil, false, &domain.VersioningError{Op: "compute", Err: err}
	}
	return m.Publish(ctx, v)
}

// Publish makes v durable. If the latest version describes the same corpus
// it is returned instead and nothing is written. Otherwise v is published
// under its id, or under the first free "<id>-N" when the id is taken.
// Version ids are never reused. The published copy records the versioning
// stage as ok; v itself is not modified.
func (m *VersionManager) Publish(ctx context.Context, v *domain.CorpusVersion) (*domain.CorpusVersion, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, &domain.VersioningError{Op: "publish", Err: err}
	}

	latest, err := m.Latest(ctx)
	switch {
	case err == nil && latest.SameCorpus(v):
		return latest, true, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, false, &domain.VersioningError{Op: "load latest", Err: err}
	}

	base := v.ID
	candidate := *v
	candidate.Stages = map[domain.Stage]domain.Status{domain.StageVersioning: domain.StatusOK}
	for n := 2; ; n++ {
		err := m.store.Publish(ctx, &candidate)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrVersionConflict) || n > maxVersionSuffix {
			return nil, false, &domain.VersioningError{Op: "publish " + candidate.ID, Err: err}
		}
		candidate.ID = fmt.Sprintf("%s-%d", base, n)
	}

	return &candidate, false, nil
}

// Latest returns the most recently created version.
// Returns domain.ErrNotFound when nothing was published yet.
func (m *VersionManager) Latest(ctx context.Context) (*domain.CorpusVersion, error) {
	versions, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, domain.ErrNotFound
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

// Versions lists published versions, oldest first.
func (m *VersionManager) Versions(ctx context.Context) ([]domain.CorpusVersion, error) {
	return m.store.List(ctx)
}

// Get returns a published version.
func (m *VersionManager) Get(ctx context.Context, id string) (*domain.CorpusVersion, error) {
	return m.store.Get(ctx, id)
}

// Verify re-hashes the raw tree and reports how it drifted from version id.
func (m *VersionManager) Verify(ctx context.Context, id string) (*domain.Drift, error) {
	v, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := m.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan raw tree: %w", err)
	}

	drift := &domain.Drift{VersionID: v.ID}
	current := make(map[string]string, len(files))
	for _, f := range files {
		current[f.Key()] = f.ByteHash
	}
	for key, hash := range current {
		expected, ok := v.FileHashes[key]
		switch {
		case !ok:
			drift.Added = append(drift.Added, key)
		case expected != hash:
			drift.Modified = append(drift.Modified, key)
		}
	}
	for key := range v.FileHashes {
		if _, ok := current[key]; !ok {
			drift.Removed = append(drift.Removed, key)
		}
	}
	slices.Sort(drift.Added)
	slices.Sort(drift.Removed)
	slices.Sort(drift.Modified)
	return drift, nil
}

// History returns the most recent runs, newest first. Without a catalog
// it falls back to the latest run manifest of each version.
func (m *VersionManager) History(ctx context.Context, limit int) ([]domain.RunManifest, error) {
	if m.catalog != nil {
		return m.catalog.ListRuns(ctx, limit)
	}

	versions, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var runs []domain.RunManifest
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		run, err := m.store.LatestRunManifest(ctx, versions[i].ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}
