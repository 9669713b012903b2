// Package html provides an Extractor for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts,
// styles, and decoding entities, while keeping paragraph boundaries as
// blank lines so the chunker can split on them.
package html
