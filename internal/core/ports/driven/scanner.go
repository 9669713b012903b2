package driven

import (
	"context"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// RawScanner reads the raw tree written by connectors.
// The raw tree is never modified by the pipeline.
type RawScanner interface {
	// Root returns the raw root directory.
	Root() string

	// Scan walks the raw tree and returns every file with its byte hash,
	// sorted by source then relative path.
	Scan(ctx context.Context) ([]domain.RawFile, error)

	// ReadFile returns the current content of a raw file.
	ReadFile(ctx context.Context, f domain.RawFile) ([]byte, error)
}
