package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// PostProcessor processes a normalised record into chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, annotation).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a record and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	// If the processor modifies chunks (e.g., annotate), it receives and returns chunks.
	Process(ctx context.Context, rec *domain.NormalizedRecord, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the record through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, rec *domain.NormalizedRecord) ([]domain.Chunk, error)
}
