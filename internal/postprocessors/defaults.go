package postprocessors

import (
	"fmt"
	"math"
	"slices"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/lexcorpus/internal/postprocessors/annotate"
	"github.com/custodia-labs/lexcorpus/internal/postprocessors/chunker"
)

// Built-in processor names.
const (
	ChunkerName  = "chunker"
	AnnotateName = "annotate"
)

// RegisterDefaults registers the built-in processors.
func RegisterDefaults(r *Registry) {
	r.Register(ChunkerName, buildChunker)
	r.Register(AnnotateName, buildAnnotate)
}

// DefaultSteps is the standard pipeline: chunk, then annotate.
func DefaultSteps(maxChars, overlap int) []Step {
	return []Step{
		{Name: ChunkerName, Config: map[string]any{"max_chars": maxChars, "overlap_chars": overlap}},
		{Name: AnnotateName},
	}
}

// buildChunker reads max_chars and overlap_chars, both in code points.
// Bad settings are reported, not clamped.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	if err := onlyKeys(cfg, "max_chars", "overlap_chars"); err != nil {
		return nil, err
	}

	maxChars, hasMax, err := intSetting(cfg, "max_chars")
	if err != nil {
		return nil, err
	}
	overlap, hasOverlap, err := intSetting(cfg, "overlap_chars")
	if err != nil {
		return nil, err
	}
	if !hasMax {
		maxChars = chunker.DefaultMaxChars
	}
	if maxChars > 0 && overlap >= maxChars {
		return nil, fmt.Errorf("overlap_chars %d must be below max_chars %d: %w", overlap, maxChars, domain.ErrInvalidInput)
	}

	opts := []chunker.Option{chunker.WithMaxChars(maxChars)}
	if hasOverlap {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	return chunker.New(opts...), nil
}

func buildAnnotate(cfg map[string]any) (driven.PostProcessor, error) {
	if err := onlyKeys(cfg); err != nil {
		return nil, err
	}
	return annotate.New(), nil
}

func onlyKeys(cfg map[string]any, allowed ...string) error {
	for key := range cfg {
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
		}
	}
	return nil
}

// intSetting reads a non-negative integer. Decoded TOML yields int64 and
// JSON yields float64; fractional values are rejected.
func intSetting(cfg map[string]any, key string) (int, bool, error) {
	val, ok := cfg[key]
	if !ok {
		return 0, false, nil
	}

	var n int
	switch v := val.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, true, fmt.Errorf("%s: %v is not a whole number: %w", key, v, domain.ErrInvalidInput)
		}
		n = int(v)
	default:
		return 0, true, fmt.Errorf("%s: expected a number, got %T: %w", key, val, domain.ErrInvalidInput)
	}
	if n < 0 {
		return 0, true, fmt.Errorf("%s: %d is negative: %w", key, n, domain.ErrInvalidInput)
	}
	return n, true, nil
}
