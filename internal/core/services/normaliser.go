package services

import (
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Connector metadata columns that duplicate provenance or only steer the
// pipeline; they are not copied onto records.
var connectorControlKeys = map[string]bool{
	"path":      true,
	"filename":  true,
	"file":      true,
	"keep":      true,
	"ucfc_keep": true,
	"format":    true,
}

// RecordFailure is a record-level error: the record was not emitted but
// other records of the same file may have been.
type RecordFailure struct {
	DocID string
	Err   error
}

// NormaliseResult is the outcome of normalising one raw file.
type NormaliseResult struct {
	Records  []domain.NormalizedRecord
	Failures []RecordFailure
}

// Normaliser turns raw files into citation-ready records.
type Normaliser struct {
	registry driven.ExtractorRegistry
	guard    *PIIGuard
}

// NewNormaliser creates a normaliser. The guard is mandatory: records are
// never emitted without the PII check.
func NewNormaliser(registry driven.ExtractorRegistry, guard *PIIGuard) *Normaliser {
	return &Normaliser{registry: registry, guard: guard}
}

// Normalise extracts, stamps and validates the records of one raw file.
//
// A file-level failure is returned as the error: *domain.ConnectorError
// when the content no longer matches the version manifest, or
// *domain.ExtractionError when the file cannot be extracted at all.
// Record-level failures (empty text, PII) are listed in the result.
func (n *Normaliser) Normalise(
	ctx context.Context,
	raw domain.RawFile,
	content []byte,
	version *domain.CorpusVersion,
) (*NormaliseResult, error) {
	expected, ok := version.FileHashes[raw.Key()]
	if !ok || contenthash.Sum(content).Hex() != expected {
		return nil, &domain.ConnectorError{Source: raw.Source, Path: raw.RelativePath, Err: domain.ErrHashMismatch}
	}

	extraction, err := n.registry.Extract(ctx, driven.ExtractInput{
		Path:    raw.Key(),
		Format:  raw.Format,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	status := domain.ExtractionOK
	if extraction.Skipped > 0 {
		status = domain.ExtractionPartial
	}

	base := docBase(raw)
	single := len(extraction.Parts) == 1 && extraction.Parts[0].Key == ""

	result := &NormaliseResult{Records: make([]domain.NormalizedRecord, 0, len(extraction.Parts))}
	for _, part := range extraction.Parts {
		docID := base + "#" + part.Key
		if single {
			docID = singleDocID(raw, part)
		}

		text := strings.TrimSpace(part.Text)
		if text == "" {
			result.Failures = append(result.Failures, RecordFailure{
				DocID: docID,
				Err: &domain.ExtractionError{
					Path:   raw.Key(),
					Format: raw.Format,
					Reason: "no extractable text",
					Err:    domain.ErrEmptyText,
				},
			})
			continue
		}

		rec := domain.NormalizedRecord{
			ID:        contenthash.RecordID(raw.Source, raw.RelativePath, raw.ByteHash, part.Key),
			Source:    raw.Source,
			VersionID: version.ID,
			Format:    raw.Format,
			DocID:     docID,
			Text:      text,
			Status:    status,
			Metadata:  recordMetadata(raw, part),
		}

		if err := n.guard.Check(raw.Key(), &rec); err != nil {
			result.Failures = append(result.Failures, RecordFailure{DocID: docID, Err: err})
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// docBase is the document identifier used as prefix for multi-record files.
func docBase(raw domain.RawFile) string {
	if id := strings.TrimSpace(raw.Metadata["doc_id"]); id != "" {
		return id
	}
	return raw.RelativePath
}

// singleDocID prefers a connector-declared id, then an id found in the
// document itself, then the relative path.
func singleDocID(raw domain.RawFile, part driven.Part) string {
	if id := strings.TrimSpace(raw.Metadata["doc_id"]); id != "" {
		return id
	}
	if id := strings.TrimSpace(part.Metadata["id"]); id != "" {
		return id
	}
	return raw.RelativePath
}

// recordMetadata merges connector, extractor and provenance metadata.
// Later layers win.
func recordMetadata(raw domain.RawFile, part driven.Part) map[string]string {
	metadata := make(map[string]string, len(raw.Metadata)+len(part.Metadata)+6)
	for k, v := range raw.Metadata {
		if !connectorControlKeys[k] {
			metadata[k] = v
		}
	}
	for k, v := range part.Metadata {
		metadata[k] = v
	}

	metadata["relative_path"] = raw.RelativePath
	metadata["byte_hash"] = raw.ByteHash
	metadata["format"] = string(raw.Format)
	metadata["mime_type"] = raw.Format.MIMEType()
	if !raw.RetrievedAt.IsZero() {
		metadata["retrieved_at"] = raw.RetrievedAt.UTC().Format(time.RFC3339)
	}
	if part.Key != "" {
		metadata["part"] = part.Key
	}
	return metadata
}
