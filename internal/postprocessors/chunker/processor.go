// Package chunker splits normalised records into citation-addressable chunks.
package chunker

import (
	"context"
	"iter"
	"unicode"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// DefaultMaxChars is the default chunk length in code points.
const DefaultMaxChars = 1500

// DefaultOverlap is the default number of code points repeated between
// consecutive chunks.
const DefaultOverlap = 0

// Processor cuts record text at paragraph, then sentence boundaries,
// falling back to a hard cut. It implements the PostProcessor interface.
type Processor struct {
	maxChars int
	overlap  int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxChars sets the maximum chunk length in code points.
// Zero disables splitting: every record becomes a single chunk.
func WithMaxChars(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.maxChars = n
		}
	}
}

// WithOverlap sets the number of code points repeated at the start of the
// next chunk.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxChars: DefaultMaxChars,
		overlap:  DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room for progress.
	if p.maxChars > 0 && p.overlap >= p.maxChars {
		p.overlap = p.maxChars / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// MaxChars returns the configured chunk length.
func (p *Processor) MaxChars() int { return p.maxChars }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Process collects the chunks of rec.
// Input chunks are ignored; this processor creates new chunks from the record text.
func (p *Processor) Process(ctx context.Context, rec *domain.NormalizedRecord, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for chunk := range p.Chunks(rec) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Chunks returns the lazy chunk sequence of rec. The sequence is finite,
// deterministic and may be ranged over any number of times.
func (p *Processor) Chunks(rec *domain.NormalizedRecord) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		text := []rune(rec.Text)
		for i, span := range p.spans(text) {
			chunk := domain.Chunk{
				ID:            contenthash.ChunkID(rec.ID, span[0], span[1]),
				RecordID:      rec.ID,
				VersionID:     rec.VersionID,
				Source:        rec.Source,
				DocID:         rec.DocID,
				SequenceIndex: i,
				CharStart:     span[0],
				CharEnd:       span[1],
				Text:          string(text[span[0]:span[1]]),
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// spans yields [start, end) code point ranges covering text.
func (p *Processor) spans(text []rune) iter.Seq2[int, [2]int] {
	return func(yield func(int, [2]int) bool) {
		n := len(text)
		if n == 0 {
			return
		}
		if p.maxChars <= 0 {
			yield(0, [2]int{0, n})
			return
		}

		start := 0
		for i := 0; ; i++ {
			end := n
			if n-start > p.maxChars {
				end = boundary(text, start+p.maxChars/2, start+p.maxChars)
			}
			if !yield(i, [2]int{start, end}) || end == n {
				return
			}

			next := end - p.overlap
			if next <= start {
				next = end
			}
			start = next
		}
	}
}

// boundary returns the best cut in (lo, hi]: just after the last paragraph
// break, else just after the last sentence end or line break, else hi.
func boundary(text []rune, lo, hi int) int {
	for i := hi; i > lo && i >= 2; i-- {
		if text[i-1] == '\n' && text[i-2] == '\n' {
			return i
		}
	}
	for i := hi; i > lo; i-- {
		if isSentenceEnd(text, i) {
			return i
		}
	}
	return hi
}

// isSentenceEnd reports whether a sentence or line ends just before i.
func isSentenceEnd(text []rune, i int) bool {
	switch text[i-1] {
	case '\n':
		return true
	case '.', '!', '?', ';':
		return i == len(text) || unicode.IsSpace(text[i])
	}
	return false
}
