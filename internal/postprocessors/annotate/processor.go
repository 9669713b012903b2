// Package annotate copies connector tags from a record onto its chunks.
package annotate

import (
	"context"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Metadata keys read from the record.
const (
	KeywordsKey = "keywords"
	StreamKey   = "stream"
)

// KeywordKeys are the sidecar columns holding keywords, by precedence.
var KeywordKeys = []string{KeywordsKey, "keyword", "tags"}

// Processor sets Keywords and Stream on every chunk.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates an annotate processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "annotate"
}

// Process annotates chunks in place and returns them.
func (p *Processor) Process(_ context.Context, rec *domain.NormalizedRecord, chunks []domain.Chunk) ([]domain.Chunk, error) {
	keywords := SplitKeywords(domain.FirstValue(rec.Metadata, KeywordKeys...))
	stream := domain.FirstValue(rec.Metadata, StreamKey)
	if len(keywords) == 0 && stream == "" {
		return chunks, nil
	}

	for i := range chunks {
		if len(keywords) > 0 {
			chunks[i].Keywords = append([]string(nil), keywords...)
		}
		chunks[i].Stream = stream
	}
	return chunks, nil
}

// SplitKeywords splits a sidecar keyword cell on commas and semicolons,
// dropping blanks and duplicates while keeping order.
func SplitKeywords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
