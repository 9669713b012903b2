// Package tabular provides an Extractor for CSV and XLSX files.
//
// A tabular file expands into one part per data row. The first row holds
// the column names. Each part's text is "column: value | column: value"
// and its metadata carries every cell as "column:<name>", so downstream
// validation sees column names as field names.
package tabular
