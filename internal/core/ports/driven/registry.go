package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// ExtractorRegistry dispatches documents to the extractor of their format.
// The variant set is closed: every format has at most one extractor.
type ExtractorRegistry interface {
	// Extract runs the extractor registered for in.Format.
	// An unknown format yields an ExtractionError with reason "unsupported format".
	Extract(ctx context.Context, in ExtractInput) (*Extraction, error)

	// Register adds an extractor. Registering a format twice panics.
	Register(extractor Extractor)

	// Formats returns the registered formats, sorted.
	Formats() []domain.Format
}
