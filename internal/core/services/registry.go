package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure ExtractorRegistry implements the interface.
var _ driven.ExtractorRegistry = (*ExtractorRegistry)(nil)

// ExtractorRegistry dispatches documents to the single extractor registered
// for their format. Registration happens at wiring time; dispatch is safe
// for concurrent use.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[domain.Format]driven.Extractor
}

// NewExtractorRegistry creates an empty registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: make(map[domain.Format]driven.Extractor),
	}
}

// Register adds an extractor for each of its formats. A format outside the
// closed set, or a format registered twice, is a wiring bug and panics.
func (r *ExtractorRegistry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, format := range extractor.Formats() {
		if !format.IsValid() {
			panic(fmt.Sprintf("extractor registry: unknown format %q", format))
		}
		if _, exists := r.extractors[format]; exists {
			panic(fmt.Sprintf("extractor registry: format %q registered twice", format))
		}
		r.extractors[format] = extractor
	}
}

// Formats returns the registered formats, sorted.
func (r *ExtractorRegistry) Formats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]domain.Format, 0, len(r.extractors))
	for f := range r.extractors {
		formats = append(formats, f)
	}
	slices.Sort(formats)
	return formats
}

// Extract runs the extractor registered for in.Format. Every failure other
// than cancellation is returned as a *domain.ExtractionError carrying the
// document path.
func (r *ExtractorRegistry) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	r.mu.RLock()
	extractor, ok := r.extractors[in.Format]
	r.mu.RUnlock()

	if !ok {
		return nil, &domain.ExtractionError{
			Path:   in.Path,
			Format: in.Format,
			Reason: "unsupported format",
			Err:    domain.ErrUnsupportedFormat,
		}
	}

	result, err := extractor.Extract(ctx, in)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var extErr *domain.ExtractionError
		if errors.As(err, &extErr) {
			if extErr.Path == "" {
				extErr.Path = in.Path
			}
			return nil, extErr
		}
		return nil, &domain.ExtractionError{
			Path:   in.Path,
			Format: in.Format,
			Reason: err.Error(),
			Err:    err,
		}
	}
	if result == nil {
		return nil, &domain.ExtractionError{
			Path:   in.Path,
			Format: in.Format,
			Reason: "extractor returned no result",
			Err:    domain.ErrEmptyText,
		}
	}
	return result, nil
}
