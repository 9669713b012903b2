package tabular

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ColumnPrefix prefixes column metadata keys.
const ColumnPrefix = "column:"

// Extractor handles CSV and XLSX documents.
type Extractor struct{}

// New creates a new tabular extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatCSV, domain.FormatXLSX}
}

// Extract expands each data row into a part.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		sheets []sheet
		err    error
	)
	switch in.Format {
	case domain.FormatCSV:
		var rows [][]string
		rows, err = readCSV(in.Content)
		sheets = []sheet{{rows: rows}}
	case domain.FormatXLSX:
		sheets, err = readXLSX(in.Content)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, in.Format)
	}
	if err != nil {
		return nil, err
	}

	var parts []driven.Part
	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parts = append(parts, rowParts(s)...)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no data rows", domain.ErrEmptyText)
	}

	return &driven.Extraction{Parts: parts}, nil
}

// sheet is a named grid of cells. CSV files have a single unnamed sheet.
type sheet struct {
	name string
	rows [][]string
}

// rowParts turns every non-empty data row into a part.
func rowParts(s sheet) []driven.Part {
	if len(s.rows) < 2 {
		return nil
	}
	width := 0
	for _, row := range s.rows {
		width = max(width, len(row))
	}
	header := columnNames(s.rows[0], width)

	var parts []driven.Part
	for i, row := range s.rows[1:] {
		n := i + 1
		var (
			fields   []string
			metadata = map[string]string{"row": strconv.Itoa(n)}
		)
		for col, value := range row {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			name := header[col]
			fields = append(fields, name+": "+value)
			metadata[ColumnPrefix+name] = value
		}
		if len(fields) == 0 {
			continue
		}

		key := "row-" + strconv.Itoa(n)
		if s.name != "" {
			key = s.name + "-" + key
			metadata["sheet"] = s.name
		}
		parts = append(parts, driven.Part{
			Key:      key,
			Text:     strings.Join(fields, " | "),
			Metadata: metadata,
		})
	}
	return parts
}

// columnNames trims header cells and names blank, duplicate or missing
// ones by position ("col3", then "col3_2" if a header already says "col3").
// Every column of the widest row gets a distinct name.
func columnNames(header []string, width int) []string {
	names := make([]string, max(width, len(header)))
	seen := make(map[string]bool, len(names))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" && !seen[h] {
			names[i] = h
			seen[h] = true
		}
	}
	for i := range names {
		if names[i] != "" {
			continue
		}
		name := "col" + strconv.Itoa(i+1)
		for n := 2; seen[name]; n++ {
			name = "col" + strconv.Itoa(i+1) + "_" + strconv.Itoa(n)
		}
		names[i] = name
		seen[name] = true
	}
	return names
}
