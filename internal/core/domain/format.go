package domain

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of document formats the pipeline understands.
// Adding a format means adding a constant here and an extractor for it.
type Format string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown Format = ""
	// FormatText represents plain text documents.
	FormatText Format = "text"
	// FormatMarkdown represents Markdown documents (extracted as text).
	FormatMarkdown Format = "markdown"
	// FormatHTML represents HTML and XHTML documents.
	FormatHTML Format = "html"
	// FormatXML represents XML documents (LEGI, BOFiP exports).
	FormatXML Format = "xml"
	// FormatPDF represents PDF documents.
	FormatPDF Format = "pdf"
	// FormatDOCX represents Office Open XML word processing documents.
	FormatDOCX Format = "docx"
	// FormatCSV represents comma separated values.
	FormatCSV Format = "csv"
	// FormatXLSX represents Office Open XML spreadsheets.
	FormatXLSX Format = "xlsx"
	// FormatJSON represents JSON or JSON Lines record exports.
	FormatJSON Format = "json"
	// FormatArchive represents zip and tar bundles of documents.
	FormatArchive Format = "archive"
)

// AllFormats lists every supported format.
func AllFormats() []Format {
	return []Format{
		FormatText, FormatMarkdown, FormatHTML, FormatXML, FormatPDF,
		FormatDOCX, FormatCSV, FormatXLSX, FormatJSON, FormatArchive,
	}
}

// IsValid reports whether f belongs to the supported set.
func (f Format) IsValid() bool {
	for _, known := range AllFormats() {
		if f == known {
			return true
		}
	}
	return false
}

// IsTabular reports whether the format expands into one record per row.
func (f Format) IsTabular() bool {
	return f == FormatCSV || f == FormatXLSX
}

// ParseFormat parses a declared format name. Unknown names yield FormatUnknown.
func ParseFormat(name string) Format {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case "txt":
		return FormatText
	case "md":
		return FormatMarkdown
	case "htm", "xhtml":
		return FormatHTML
	case "jsonl":
		return FormatJSON
	case "zip", "tar", "tgz":
		return FormatArchive
	}
	if f.IsValid() {
		return f
	}
	return FormatUnknown
}

// DetectFormat infers a document format from the path's extension.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".tar.gz", ".tar.zst", ".tar.zstd", ".tar.lz4"} {
		if strings.HasSuffix(lower, suffix) {
			return FormatArchive
		}
	}

	switch filepath.Ext(lower) {
	case ".txt", ".text":
		return FormatText
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".xml":
		return FormatXML
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".zip", ".tar", ".tgz":
		return FormatArchive
	default:
		return FormatUnknown
	}
}

// MIMEType returns the canonical MIME type recorded in record metadata.
func (f Format) MIMEType() string {
	switch f {
	case FormatText:
		return "text/plain"
	case FormatMarkdown:
		return "text/markdown"
	case FormatHTML:
		return "text/html"
	case FormatXML:
		return "application/xml"
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatJSON:
		return "application/json"
	case FormatArchive:
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}
