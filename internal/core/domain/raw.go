package domain

import (
	"path"
	"strings"
	"time"
)

// KeepKeys are the sidecar columns holding the keep flag, by precedence.
var KeepKeys = []string{"keep", "ucfc_keep"}

// RawFile is a file observed in the raw tree. It is produced by connectors
// and is read-only to the pipeline.
type RawFile struct {
	// Source is the logical source name (first path segment under the raw root).
	Source string

	// RelativePath is the slash-separated path below the source directory.
	RelativePath string

	// Format is the declared or detected document format.
	Format Format

	// ByteHash is the hex SHA-256 digest of the file content.
	ByteHash string

	// Size is the file size in bytes.
	Size int64

	// RetrievedAt is the file modification time, used as retrieval time.
	RetrievedAt time.Time

	// Metadata contains connector-provided key-value pairs (sidecar manifests).
	Metadata map[string]string

	// Sidecar marks connector metadata files. They belong to the corpus
	// but are never normalised as documents.
	Sidecar bool
}

// Key returns the corpus-wide path of the file: "<source>/<relative_path>".
// This is the key used in CorpusVersion.FileHashes.
func (f RawFile) Key() string {
	return path.Join(f.Source, f.RelativePath)
}

// Skipped reports whether the connector asked for the file to be left out
// of normalisation (keep=false or ucfc_keep=false in its sidecar row).
func (f RawFile) Skipped() bool {
	switch strings.ToLower(FirstValue(f.Metadata, KeepKeys...)) {
	case "0", "false", "no", "skip", "discard":
		return true
	}
	return false
}

// FirstValue returns the first non-blank value among keys, trimmed.
func FirstValue(metadata map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(metadata[k]); v != "" {
			return v
		}
	}
	return ""
}
