package domain

// ExtractionStatus describes how a record's text was obtained.
type ExtractionStatus string

const (
	// ExtractionOK indicates the extractor produced text.
	ExtractionOK ExtractionStatus = "ok"

	// ExtractionPartial indicates the extractor produced text but skipped
	// some inner parts (e.g. unreadable archive members).
	ExtractionPartial ExtractionStatus = "partial"
)

// NormalizedRecord is the canonical representation of one document after
// extraction. It is derived and fully reproducible from the raw file and
// the corpus version.
type NormalizedRecord struct {
	// ID is hash(source, relative_path, byte_hash[, part key]).
	ID string `json:"record_id"`

	// Source is the logical source name.
	Source string `json:"source"`

	// VersionID is the corpus version the record was derived from.
	VersionID string `json:"version_id"`

	// Format is the raw file's format.
	Format Format `json:"format"`

	// DocID is the document identifier, suffixed with "#<part>" for
	// records expanded from tabular or archive files.
	DocID string `json:"doc_id"`

	// Text is the full extracted text before chunking.
	Text string `json:"extracted_text"`

	// Status is the extraction status.
	Status ExtractionStatus `json:"extraction_status"`

	// Metadata contains connector, extractor and provenance key-value pairs.
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a citation-addressable slice of a record's text. Offsets are in
// Unicode code points of the record's extracted text.
type Chunk struct {
	// ID is hash(record_id, char_start, char_end).
	ID string `json:"chunk_id"`

	// RecordID links to the parent NormalizedRecord.
	RecordID string `json:"record_id"`

	// VersionID is the corpus version the chunk belongs to.
	VersionID string `json:"version_id"`

	// Source and DocID are copied from the record for consumers.
	Source string `json:"source"`
	DocID  string `json:"doc_id"`

	// SequenceIndex is the ordinal position within the record.
	SequenceIndex int `json:"sequence_index"`

	// CharStart and CharEnd delimit the chunk in the record's text.
	CharStart int `json:"char_start"`
	CharEnd   int `json:"char_end"`

	// Text is the chunk content.
	Text string `json:"text"`

	// Keywords are connector-provided tags, when present.
	Keywords []string `json:"keywords,omitempty"`

	// Stream is the connector stream the document was filed under.
	Stream string `json:"stream,omitempty"`
}
