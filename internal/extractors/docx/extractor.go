// Package docx provides an Extractor for Office Open XML word processing
// documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatDOCX}
}

// Extract reads word/document.xml. Paragraphs become blank-line separated
// blocks; table cells are separated by tabs.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(in.Content), int64(len(in.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip container: %w", domain.ErrMalformedDocument, err)
	}

	content, err := readPart(reader, documentPart)
	if err != nil {
		return nil, err
	}

	text, err := parseDocumentXML(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrMalformedDocument, documentPart, err)
	}

	metadata := extractProperties(reader)
	if metadata["title"] == "" {
		metadata["title"] = titleFromPath(in.Path)
	}

	return &driven.Extraction{
		Parts: []driven.Part{{Text: text, Metadata: metadata}},
	}, nil
}

// readPart returns the content of a named zip entry.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", domain.ErrMalformedDocument, name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrMalformedDocument, name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedDocument, name)
}

// parseDocumentXML walks the WordprocessingML token stream.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	var (
		result strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				result.WriteString("\t")
			case "br", "cr":
				result.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				result.WriteString("\n\n")
			case "tc":
				result.WriteString("\t")
			}
		case xml.CharData:
			if inText {
				result.Write(t)
			}
		}
	}

	lines := strings.Split(result.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text := strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text), nil
}

// coreXML represents the structure of docProps/core.xml.
// Author fields are deliberately not read.
type coreXML struct {
	Title    string `xml:"title"`
	Subject  string `xml:"subject"`
	Modified string `xml:"modified"`
}

// extractProperties reads document properties from docProps/core.xml.
func extractProperties(reader *zip.Reader) map[string]string {
	metadata := map[string]string{}

	content, err := readPart(reader, corePart)
	if err != nil {
		return metadata
	}

	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return metadata
	}
	if v := strings.TrimSpace(core.Title); v != "" {
		metadata["title"] = v
	}
	if v := strings.TrimSpace(core.Subject); v != "" {
		metadata["subject"] = v
	}
	if v := strings.TrimSpace(core.Modified); v != "" {
		metadata["modified"] = v
	}
	return metadata
}

func titleFromPath(uri string) string {
	filename := path.Base(uri)
	filename = strings.TrimSuffix(filename, path.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}
