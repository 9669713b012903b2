package rawtree

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Columns that locate the described file, relative to the sidecar.
var pathColumns = []string{"path", "filename", "file"}

// isSidecar reports whether a relative path names a connector manifest.
func isSidecar(rel string) bool {
	name := strings.ToLower(path.Base(rel))
	if path.Ext(name) != ".csv" {
		return false
	}
	stem := strings.TrimSuffix(name, ".csv")
	return strings.HasSuffix(stem, "_manifest") || strings.HasPrefix(stem, "manifest_")
}

// sidecarRow is the metadata a sidecar attaches to one file.
type sidecarRow struct {
	rel      string
	metadata map[string]string
}

// parseSidecar reads a connector manifest. Paths in the returned rows are
// relative to the source directory.
func parseSidecar(dir string, content []byte) ([]sidecarRow, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
	}

	pathCol := -1
	for _, want := range pathColumns {
		for i, c := range columns {
			if c == want {
				pathCol = i
				break
			}
		}
		if pathCol >= 0 {
			break
		}
	}
	if pathCol < 0 {
		return nil, fmt.Errorf("sidecar has no path or filename column: %w", domain.ErrInvalidInput)
	}

	var rows []sidecarRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if pathCol >= len(record) {
			continue
		}
		target := strings.TrimSpace(record[pathCol])
		if target == "" {
			continue
		}
		rel := path.Clean(path.Join(dir, strings.TrimPrefix(target, "./")))
		if rel == "." || strings.HasPrefix(rel, "../") {
			continue
		}

		metadata := make(map[string]string, len(columns))
		for i, c := range columns {
			if c == "" || i >= len(record) {
				continue
			}
			if v := strings.TrimSpace(record[i]); v != "" {
				metadata[c] = v
			}
		}
		rows = append(rows, sidecarRow{rel: rel, metadata: metadata})
	}
	return rows, nil
}

// applySidecars merges sidecar metadata into the files they describe.
// Sidecars are applied in walk order and later rows win per key.
func (s *Scanner) applySidecars(ctx context.Context, files []domain.RawFile) error {
	index := make(map[string]int, len(files))
	for i, f := range files {
		index[f.Key()] = i
	}

	for _, sc := range files {
		if !sc.Sidecar {
			continue
		}
		content, err := s.ReadFile(ctx, sc)
		if err != nil {
			return &domain.ConnectorError{Source: sc.Source, Path: sc.RelativePath, Err: err}
		}
		rows, err := parseSidecar(path.Dir(sc.RelativePath), content)
		if err != nil {
			// An unreadable manifest leaves its files without metadata.
			continue
		}

		for _, row := range rows {
			i, ok := index[path.Join(sc.Source, row.rel)]
			if !ok || files[i].Sidecar {
				continue
			}
			target := &files[i]
			if target.Metadata == nil {
				target.Metadata = make(map[string]string, len(row.metadata))
			}
			for k, v := range row.metadata {
				target.Metadata[k] = v
			}
			if f := domain.ParseFormat(row.metadata["format"]); f != domain.FormatUnknown {
				target.Format = f
			}
		}
	}
	return nil
}
