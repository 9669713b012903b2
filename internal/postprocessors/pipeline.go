// Package postprocessors turns normalised records into chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains PostProcessors and runs them in order. The first step
// receives nil chunks and creates them; later steps may only rewrite them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline running processors in the order given.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs rec through every step and checks that the result still
// addresses rec: chunks carry its ids, are numbered from zero and stay
// inside its text.
func (p *Pipeline) Process(ctx context.Context, rec *domain.NormalizedRecord) ([]domain.Chunk, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is nil: %w", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, processor := range p.processors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		chunks, err = processor.Process(ctx, rec, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	if err := checkChunks(rec, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}

func checkChunks(rec *domain.NormalizedRecord, chunks []domain.Chunk) error {
	textLen := len([]rune(rec.Text))
	prevStart := -1
	for i, c := range chunks {
		switch {
		case c.RecordID != rec.ID || c.VersionID != rec.VersionID:
			return fmt.Errorf("chunk %d belongs to record %q, not %q", i, c.RecordID, rec.ID)
		case c.SequenceIndex != i:
			return fmt.Errorf("chunk %d has sequence index %d", i, c.SequenceIndex)
		case c.CharStart < 0 || c.CharEnd < c.CharStart || c.CharEnd > textLen:
			return fmt.Errorf("chunk %d spans [%d,%d) outside a text of %d code points", i, c.CharStart, c.CharEnd, textLen)
		case c.CharStart <= prevStart:
			return fmt.Errorf("chunk %d starts at %d, not after the previous chunk", i, c.CharStart)
		}
		prevStart = c.CharStart
	}
	return nil
}
