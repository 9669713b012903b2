package tabular

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

const (
	workbookPart      = "xl/workbook.xml"
	workbookRelsPart  = "xl/_rels/workbook.xml.rels"
	sharedStringsPart = "xl/sharedStrings.xml"
)

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type sharedStringsXML struct {
	Items []stringItem `xml:"si"`
}

// stringItem is plain (<t>) or rich text (<r><t>).
type stringItem struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (s stringItem) String() string {
	if len(s.Runs) == 0 {
		return s.Text
	}
	var b strings.Builder
	for _, r := range s.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type worksheetXML struct {
	Rows []struct {
		Cells []struct {
			Ref    string      `xml:"r,attr"`
			Type   string      `xml:"t,attr"`
			Value  string      `xml:"v"`
			Inline *stringItem `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

// readXLSX reads every worksheet in workbook order.
func readXLSX(content []byte) ([]sheet, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip container: %w", domain.ErrMalformedDocument, err)
	}
	files := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		files[f.Name] = f
	}

	var wb workbookXML
	if err := decodePart(files, workbookPart, &wb); err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := decodePart(files, workbookRelsPart, &rels); err != nil {
		return nil, err
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, r := range rels.Relationships {
		target := strings.TrimPrefix(r.Target, "/")
		if !strings.HasPrefix(target, "xl/") {
			target = path.Join("xl", target)
		}
		targets[r.ID] = target
	}

	var shared []string
	if _, ok := files[sharedStringsPart]; ok {
		var sst sharedStringsXML
		if err := decodePart(files, sharedStringsPart, &sst); err != nil {
			return nil, err
		}
		shared = make([]string, len(sst.Items))
		for i, item := range sst.Items {
			shared[i] = item.String()
		}
	}

	var sheets []sheet
	for _, s := range wb.Sheets {
		target, ok := targets[s.RID]
		if !ok {
			return nil, fmt.Errorf("%w: sheet %q has no relationship", domain.ErrMalformedDocument, s.Name)
		}
		var ws worksheetXML
		if err := decodePart(files, target, &ws); err != nil {
			return nil, err
		}
		rows, err := sheetRows(ws, shared)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet{name: s.Name, rows: rows})
	}
	return sheets, nil
}

// sheetRows places cells by their reference so that sparse rows keep
// their columns aligned with the header.
func sheetRows(ws worksheetXML, shared []string) ([][]string, error) {
	rows := make([][]string, 0, len(ws.Rows))
	for _, r := range ws.Rows {
		var row []string
		for i, c := range r.Cells {
			col := i
			if idx := columnIndex(c.Ref); idx >= 0 {
				col = idx
			}
			value := c.Value
			switch c.Type {
			case "s":
				idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
				if err != nil || idx < 0 || idx >= len(shared) {
					return nil, fmt.Errorf("%w: bad shared string index %q", domain.ErrMalformedDocument, c.Value)
				}
				value = shared[idx]
			case "inlineStr":
				if c.Inline != nil {
					value = c.Inline.String()
				}
			case "b":
				value = map[string]string{"1": "TRUE", "0": "FALSE"}[c.Value]
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// columnIndex converts the letters of a cell reference ("AB12") to a
// zero-based column index.
func columnIndex(ref string) int {
	idx := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		idx = idx*26 + int(r-'A'+1)
	}
	return idx - 1
}

func decodePart(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", domain.ErrMalformedDocument, name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", domain.ErrMalformedDocument, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", domain.ErrMalformedDocument, name, err)
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse %s: %w", domain.ErrMalformedDocument, name, err)
	}
	return nil
}
