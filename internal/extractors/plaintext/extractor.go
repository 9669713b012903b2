// Package plaintext provides an Extractor for plain text documents.
package plaintext

import (
	"bytes"
	"context"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxTitleLength bounds first-line titles; longer lines are body text.
const maxTitleLength = 200

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatText}
}

// Extract decodes the content as UTF-8. Invalid sequences are replaced
// with U+FFFD and line endings are normalised to "\n".
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := bytes.TrimPrefix(in.Content, utf8BOM)
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	metadata := map[string]string{}
	if title := extractTitle(text, in.Path); title != "" {
		metadata["title"] = title
	}

	return &driven.Extraction{
		Parts: []driven.Part{{Text: text, Metadata: metadata}},
	}, nil
}

// extractTitle uses the first line when it is short, else the file name.
func extractTitle(text, uri string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) <= maxTitleLength {
			return line
		}
		break
	}
	return titleFromPath(uri)
}

func titleFromPath(uri string) string {
	if uri == "" {
		return ""
	}
	name := path.Base(uri)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
