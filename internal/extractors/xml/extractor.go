// Package xml provides an Extractor for XML documents such as LEGI
// articles and BOFiP exports. Text is gathered from character data;
// identifying elements are lifted into metadata.
package xml

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// metadataTags maps element names (upper-cased local names) to the
// metadata key they fill. The first non-empty occurrence wins.
var metadataTags = map[string]string{
	"ID":         "id",
	"CID":        "cid",
	"NOR":        "nor",
	"NUM":        "num",
	"NATURE":     "nature",
	"ETAT":       "etat",
	"TITRE":      "title",
	"TITREFULL":  "title",
	"TITLE":      "title",
	"DATE_TEXTE": "date",
	"DATE_PUBLI": "date_publi",
	"DATE_DEBUT": "date_debut",
	"DATE_FIN":   "date_fin",
	"DATE":       "date",
	"URL":        "url",
}

// inlineElements do not break paragraphs.
var inlineElements = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "em": true, "strong": true,
	"span": true, "sup": true, "sub": true, "font": true, "abbr": true,
}

var (
	multiSpaces   = regexp.MustCompile(`[ \t\x{00A0}]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles XML documents.
type Extractor struct{}

// New creates a new XML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatXML}
}

// Extract walks the token stream. Legal exports often embed HTML
// fragments and entities, so the decoder runs in non-strict mode;
// truncated documents are still rejected.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(in.Content))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var (
		text     strings.Builder
		metadata = map[string]string{}
		stack    []string
		field    strings.Builder
		sawRoot  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			name := t.Name.Local
			stack = append(stack, name)
			if _, ok := metadataTags[strings.ToUpper(name)]; ok {
				field.Reset()
			}
			if strings.EqualFold(name, "br") {
				text.WriteString("\n")
			}
		case xml.EndElement:
			name := t.Name.Local
			if key, ok := metadataTags[strings.ToUpper(name)]; ok {
				value := strings.TrimSpace(multiSpaces.ReplaceAllString(field.String(), " "))
				if value != "" && metadata[key] == "" {
					metadata[key] = value
				}
			}
			if !inlineElements[strings.ToLower(name)] {
				text.WriteString("\n\n")
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text.Write(t)
			field.Write(t)
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element", domain.ErrMalformedDocument)
	}

	return &driven.Extraction{
		Parts: []driven.Part{{Text: cleanText(text.String()), Metadata: metadata}},
	}, nil
}

// cleanText collapses whitespace while keeping paragraph breaks.
func cleanText(s string) string {
	s = multiSpaces.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
