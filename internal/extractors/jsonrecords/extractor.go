// Package jsonrecords provides an Extractor for JSON and JSON Lines record
// exports (open data APIs, BOFiP and JUDILIBRE dumps). Each record found in
// the file becomes one part.
package jsonrecords

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	htmlextractor "github.com/custodia-labs/lexcorpus/internal/extractors/html"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxDepth bounds the search for well-known keys in nested objects.
const maxDepth = 6

// Key sets are compared after normalisation (lowercase, no "-" or "_").
var (
	textKeys  = keySet("texte", "text", "contenu", "content", "body", "resume", "summary", "abstract", "expose")
	titleKeys = keySet("titre", "title", "libelle", "objet", "reference")
	idKeys    = keySet("id", "ideli", "idelioralias", "cid", "idtexte", "nor", "num", "identifier")
	urlKeys   = keySet("url", "lien", "link", "permalink", "uri")
	dateKeys  = keySet("date", "datedebut", "datefin", "datepublication", "datemaj", "datemiseajour")

	// containerKeys hold the record list in API responses.
	containerKeys = []string{"records", "results", "items", "data"}
)

// Extractor handles JSON and JSON Lines documents.
type Extractor struct{}

// New creates a new JSON records extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatJSON}
}

// Extract parses the file as one JSON document, falling back to one
// document per line. Unparseable lines are counted as skipped.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := bytes.ToValidUTF8(in.Content, []byte("\uFFFD"))

	var (
		records []map[string]any
		skipped int
	)
	if doc, err := decode(content); err == nil {
		records = recordsOf(doc)
	} else {
		records, skipped, err = decodeLines(content)
		if err != nil {
			return nil, err
		}
	}

	parts := make([]driven.Part, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, recordPart(rec, i+1))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no records", domain.ErrEmptyText)
	}

	return &driven.Extraction{Parts: parts, Skipped: skipped}, nil
}

func decode(content []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return doc, nil
}

func decodeLines(content []byte) ([]map[string]any, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		records []map[string]any
		skipped int
		lines   int
	)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines++
		doc, err := decode(line)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, recordsOf(doc)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
	}
	if lines > 0 && skipped == lines {
		return nil, 0, fmt.Errorf("%w: no parseable JSON", domain.ErrMalformedDocument)
	}
	return records, skipped, nil
}

// recordsOf finds the records of a decoded document: a top-level array,
// an array under a container key, or the object itself.
func recordsOf(doc any) []map[string]any {
	switch v := doc.(type) {
	case []any:
		return objects(v)
	case map[string]any:
		for _, key := range containerKeys {
			if list, ok := v[key].([]any); ok {
				return objects(list)
			}
		}
		return []map[string]any{v}
	}
	return nil
}

func objects(list []any) []map[string]any {
	var out []map[string]any
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// recordPart builds the part of the n-th record of the file.
func recordPart(rec map[string]any, n int) driven.Part {
	metadata := map[string]string{"record": strconv.Itoa(n)}
	for name, keys := range map[string]map[string]bool{
		"id":    idKeys,
		"title": titleKeys,
		"url":   urlKeys,
		"date":  dateKeys,
	} {
		if v := firstValue(rec, keys); v != "" {
			metadata[name] = v
		}
	}

	text := joinValues(rec, textKeys)
	if text == "" {
		text = metadata["title"]
	}

	return driven.Part{
		Key:      "record-" + strconv.Itoa(n),
		Text:     text,
		Metadata: metadata,
	}
}

// collectValues returns scalar values under matching keys, depth first
// with object keys visited in sorted order.
func collectValues(node any, keys map[string]bool, depth int, out *[]string) {
	if depth > maxDepth {
		return
	}
	switch v := node.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		slices.Sort(names)
		for _, k := range names {
			child := v[k]
			if keys[normaliseKey(k)] {
				if s, ok := scalar(child); ok {
					*out = append(*out, s)
				}
			}
			collectValues(child, keys, depth+1, out)
		}
	case []any:
		for _, child := range v {
			collectValues(child, keys, depth+1, out)
		}
	}
}

func firstValue(rec map[string]any, keys map[string]bool) string {
	var values []string
	collectValues(rec, keys, 0, &values)
	for _, v := range values {
		if v = cleanText(v); v != "" {
			return v
		}
	}
	return ""
}

// joinValues joins distinct text values as paragraphs. Values carrying
// markup are reduced to text first.
func joinValues(rec map[string]any, keys map[string]bool) string {
	var values []string
	collectValues(rec, keys, 0, &values)

	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if strings.Contains(v, "<") && strings.Contains(v, ">") {
			v = htmlextractor.StripHTML(v)
		}
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return strings.Join(out, "\n\n")
}

func scalar(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normaliseKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "-", "")
	return strings.ReplaceAll(k, "_", "")
}

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
