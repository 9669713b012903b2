package domain

import (
	"maps"
	"slices"
	"time"
)

// CorpusVersion is an immutable, content-addressed snapshot of the raw tree.
// Once published its manifest is never rewritten; a changed corpus always
// produces a new version.
type CorpusVersion struct {
	// ID is "<YYYY-MM-DD>-<corpus hash prefix>", with a numeric suffix when
	// that id was already taken by a different snapshot.
	ID string `json:"version_id"`

	// CreatedAt is the UTC creation time.
	CreatedAt time.Time `json:"created_at"`

	// CorpusHash is the hex digest over all file hashes.
	CorpusHash string `json:"corpus_hash"`

	// FileHashes maps "<source>/<relative_path>" to the hex byte hash.
	FileHashes map[string]string `json:"file_hashes"`

	// Sources lists the source names present in the snapshot, sorted.
	Sources []string `json:"sources"`

	// Files is the full inventory captured at creation time.
	Files []FileEntry `json:"files,omitempty"`

	// Stages records the stage statuses frozen at publication.
	Stages map[Stage]Status `json:"stages,omitempty"`
}

// FileEntry is the manifest view of a RawFile.
type FileEntry struct {
	Source       string            `json:"source"`
	RelativePath string            `json:"relative_path"`
	Format       Format            `json:"format"`
	ByteHash     string            `json:"byte_hash"`
	Size         int64             `json:"size"`
	RetrievedAt  time.Time         `json:"retrieved_at"`
	Sidecar      bool              `json:"sidecar,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewFileEntry converts a RawFile into its manifest entry.
func NewFileEntry(f RawFile) FileEntry {
	return FileEntry{
		Source:       f.Source,
		RelativePath: f.RelativePath,
		Format:       f.Format,
		ByteHash:     f.ByteHash,
		Size:         f.Size,
		RetrievedAt:  f.RetrievedAt.UTC(),
		Sidecar:      f.Sidecar,
		Metadata:     f.Metadata,
	}
}

// RawFile converts the manifest entry back into a RawFile.
func (e FileEntry) RawFile() RawFile {
	return RawFile{
		Source:       e.Source,
		RelativePath: e.RelativePath,
		Format:       e.Format,
		ByteHash:     e.ByteHash,
		Size:         e.Size,
		RetrievedAt:  e.RetrievedAt,
		Metadata:     e.Metadata,
		Sidecar:      e.Sidecar,
	}
}

// SameCorpus reports whether two versions describe the same raw tree:
// same corpus hash and same path inventory.
func (v *CorpusVersion) SameCorpus(other *CorpusVersion) bool {
	if v == nil || other == nil {
		return false
	}
	return v.CorpusHash == other.CorpusHash && maps.Equal(v.FileHashes, other.FileHashes)
}

// HasSource reports whether the snapshot contains files of the source.
func (v *CorpusVersion) HasSource(source string) bool {
	return slices.Contains(v.Sources, source)
}

// FilesOf returns the inventory entries of one source, sorted by path.
func (v *CorpusVersion) FilesOf(source string) []FileEntry {
	var out []FileEntry
	for _, f := range v.Files {
		if f.Source == source {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b FileEntry) int {
		switch {
		case a.RelativePath < b.RelativePath:
			return -1
		case a.RelativePath > b.RelativePath:
			return 1
		}
		return 0
	})
	return out
}

// Drift describes how a raw tree differs from a published version.
type Drift struct {
	VersionID string   `json:"version_id"`
	Added     []string `json:"added,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Modified  []string `json:"modified,omitempty"`
}

// Clean reports whether the raw tree still matches the version.
func (d Drift) Clean() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}
