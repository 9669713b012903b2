package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Extractor turns the bytes of one document format into text parts.
// Each extractor handles a fixed subset of the closed format set.
type Extractor interface {
	// Formats returns the formats this extractor handles.
	Formats() []domain.Format

	// Extract produces the text parts of a document.
	// Errors are reported as *domain.ExtractionError.
	Extract(ctx context.Context, in ExtractInput) (*Extraction, error)
}

// ExtractInput is a document handed to an extractor.
type ExtractInput struct {
	// Path is the document path, used in error reports and archive member keys.
	Path string

	// Format is the format to extract as.
	Format domain.Format

	// Content is the full document content. Extractors must not retain it.
	Content []byte
}

// Extraction is the output of an extractor.
type Extraction struct {
	// Parts holds one entry per logical document. Single-document formats
	// return exactly one part with an empty key; tabular formats return
	// one part per row.
	Parts []Part

	// Skipped counts inner units that could not be extracted, such as
	// unreadable archive members. A non-zero value marks records partial.
	Skipped int
}

// Part is one logical document within a file.
type Part struct {
	// Key distinguishes parts of the same file ("row-12", "a.xml").
	Key string

	// Text is the extracted text.
	Text string

	// Metadata holds structural metadata (title, columns, page count).
	Metadata map[string]string
}
