package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// File and directory names inside a version directory.
const (
	ManifestFile    = "manifest.json"
	RunManifestFile = "run_manifest.json"
	NormalizedDir   = "normalized"
	RunsDir         = "runs"
	OutputExt       = ".jsonl"

	stagingPrefix = ".staging-"
	tempExt       = ".tmp"
)

// Ensure Store implements the interface.
var _ driven.VersionStore = (*Store)(nil)

// Store implements driven.VersionStore on a local directory tree.
type Store struct {
	root string

	// beforeRename runs between staging and the final rename.
	beforeRename func() error

	// syncDir flushes a directory entry. Defaults to fsyncDir.
	syncDir func(dir string) error
}

// NewStore creates a store rooted at root. The root is not created until
// the first version is published. Staging directories left behind by an
// interrupted process are removed.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("processed root is required: %w", domain.ErrInvalidInput)
	}
	s := &Store{root: filepath.Clean(root), syncDir: fsyncDir}
	if err := s.cleanStaging(); err != nil {
		return nil, fmt.Errorf("clean staging: %w", err)
	}
	return s, nil
}

// Root returns the processed root.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) cleanStaging() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagingPrefix) {
			if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) versionDir(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("version id %q: %w", id, domain.ErrInvalidInput)
	}
	return filepath.Join(s.root, id), nil
}

// Publish writes the version manifest and an empty normalized directory
// into a staging directory, then renames it into place. On any failure
// before the rename, cancellation included, the staging directory is
// removed, and so is the root when this call created it.
func (s *Store) Publish(ctx context.Context, v *domain.CorpusVersion) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	final, err := s.versionDir(v.ID)
	if err != nil {
		return err
	}
	taken, err := exists(final)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrVersionConflict
	}

	rootExisted, err := exists(s.root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create processed root: %w", err)
	}

	staging, err := os.MkdirTemp(s.root, stagingPrefix+v.ID+"-")
	if err != nil {
		if !rootExisted {
			_ = os.Remove(s.root)
		}
		return fmt.Errorf("create staging: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
			if !rootExisted {
				_ = os.Remove(s.root)
			}
		}
	}()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(staging, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Mkdir(filepath.Join(staging, NormalizedDir), 0o755); err != nil {
		return fmt.Errorf("create normalized dir: %w", err)
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return err
	}
	if err := s.syncDir(staging); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.beforeRename != nil {
		if err := s.beforeRename(); err != nil {
			return err
		}
	}

	if err := os.Rename(staging, final); err != nil {
		if taken, _ := exists(final); taken {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("publish %s: %w", v.ID, err)
	}

	// The rename is the commit point: once it succeeds the version is
	// visible and Publish reports success. Syncing the root is best effort.
	_ = s.syncDir(s.root)
	return nil
}

// Get loads a published version manifest.
func (s *Store) Get(_ context.Context, id string) (*domain.CorpusVersion, error) {
	dir, err := s.versionDir(id)
	if err != nil {
		return nil, err
	}
	var v domain.CorpusVersion
	if err := readJSON(filepath.Join(dir, ManifestFile), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// List returns published versions sorted by creation time.
func (s *Store) List(ctx context.Context) ([]domain.CorpusVersion, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var versions []domain.CorpusVersion
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		v, err := s.Get(ctx, e.Name())
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load version %s: %w", e.Name(), err)
		}
		versions = append(versions, *v)
	}

	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].CreatedAt.Before(versions[j].CreatedAt)
		}
		return versions[i].ID < versions[j].ID
	})
	return versions, nil
}

// WriteRunManifest appends the manifest to the version's run history and
// mirrors it to run_manifest.json.
func (s *Store) WriteRunManifest(_ context.Context, m *domain.RunManifest) error {
	dir, err := s.publishedDir(m.VersionID)
	if err != nil {
		return err
	}
	if m.RunID == "" || m.RunID != filepath.Base(m.RunID) || strings.HasPrefix(m.RunID, ".") {
		return fmt.Errorf("run id %q: %w", m.RunID, domain.ErrInvalidInput)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run manifest: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(filepath.Join(dir, RunsDir, m.RunID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("write run history: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, RunManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}

// LatestRunManifest loads run_manifest.json of a version.
func (s *Store) LatestRunManifest(_ context.Context, versionID string) (*domain.RunManifest, error) {
	dir, err := s.versionDir(versionID)
	if err != nil {
		return nil, err
	}
	var m domain.RunManifest
	if err := readJSON(filepath.Join(dir, RunManifestFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// publishedDir returns the directory of a published version.
func (s *Store) publishedDir(versionID string) (string, error) {
	dir, err := s.versionDir(versionID)
	if err != nil {
		return "", err
	}
	ok, err := exists(filepath.Join(dir, ManifestFile))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("version %s: %w", versionID, domain.ErrNotFound)
	}
	return dir, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
